package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/staffauth/internal/config"
	"github.com/geocoder89/staffauth/internal/sheets"
	"github.com/gin-gonic/gin"
)

const importFormField = "file"

// ImportUsers creates one user per sheet row. Row failures are reported in the
// body; the request itself only fails when the file cannot be read.
func (h *UsersHandler) ImportUsers(ctx *gin.Context) {
	header, err := ctx.FormFile(importFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondTooLarge(ctx, "Upload is too large.")
			return
		}
		respondFieldErrors(ctx, "A spreadsheet upload is required", []FieldError{
			{Field: importFormField, Rule: "required", Message: "is required"},
		})
		return
	}

	if h.maxUpload > 0 && header.Size > h.maxUpload {
		RespondTooLarge(ctx, "Upload is too large.")
		return
	}

	format, err := sheets.FormatFromFilename(header.Filename)
	if err != nil {
		RespondError(ctx, http.StatusBadRequest, "unsupported_format", "Only .xlsx and .csv files are accepted.", nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondServiceError(ctx, h.log, "open upload", err)
		return
	}
	defer file.Close()

	rows, err := sheets.Parse(format, file)
	if err != nil {
		if errors.Is(err, sheets.ErrEmptySheet) || errors.Is(err, sheets.ErrMissingColumns) {
			RespondError(ctx, http.StatusBadRequest, "invalid_sheet", err.Error(), nil)
			return
		}
		h.log.WarnContext(ctx.Request.Context(), "unreadable upload", "filename", header.Filename, "err", err)
		RespondError(ctx, http.StatusBadRequest, "invalid_sheet", "The file could not be read.", nil)
		return
	}

	// bcrypt per row, so the budget scales with the batch
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), requestTimeout+time.Duration(len(rows))*time.Second)
	defer cancel()

	result := h.users.ImportMany(cctx, rows)

	ctx.JSON(http.StatusOK, gin.H{
		"total":   len(rows),
		"created": len(result.Success),
		"failed":  len(result.Errors),
		"success": result.Success,
		"errors":  result.Errors,
	})
}

// ExportUsers streams every user matching the list filters as a spreadsheet.
func (h *UsersHandler) ExportUsers(ctx *gin.Context) {
	format, ok := sheets.ParseFormat(ctx.Query("format"))
	if !ok {
		respondFieldErrors(ctx, "Invalid query parameters", []FieldError{
			{Field: "format", Rule: "oneof", Param: "xlsx csv", Message: "must be one of xlsx, csv"},
		})
		return
	}

	criteria, fields := parseCriteria(ctx)
	if len(fields) > 0 {
		respondFieldErrors(ctx, "Invalid query parameters", fields)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 30*time.Second)
	defer cancel()

	users, err := h.users.ExportAll(cctx, criteria)
	if err != nil {
		respondServiceError(ctx, h.log, "export users", err)
		return
	}

	var buf bytes.Buffer
	if err := sheets.Write(format, &buf, users); err != nil {
		respondServiceError(ctx, h.log, "write export", err)
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="`+format.Filename(h.exportClock())+`"`)
	ctx.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
