// Package sheets converts between user records and spreadsheet files. XLSX
// goes through excelize; CSV uses the same column layout.
package sheets

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/geocoder89/staffauth/internal/domain/user"
)

type Format string

const (
	XLSX Format = "xlsx"
	CSV  Format = "csv"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")
	ErrEmptySheet        = errors.New("file has no header row")
	ErrMissingColumns    = errors.New("header row must contain an Email column")
)

// Import header names, matched case-insensitively.
const (
	colID        = "ID"
	colEmail     = "Email"
	colFirstName = "First Name"
	colLastName  = "Last Name"
	colPhone     = "Phone"
	colRole      = "Role"
	colStatus    = "Status"
	colAddress   = "Address"
	colPassword  = "Password"
	colImageURL  = "Image URL"
	colCreatedAt = "Created At"
	colUpdatedAt = "Updated At"
)

var exportColumns = []string{
	colID, colEmail, colFirstName, colLastName, colPhone, colRole, colStatus,
	colCreatedAt, colUpdatedAt, colAddress, colImageURL,
}

// phoneColumn is the position of colPhone in exportColumns. E.164 numbers
// start with '+' and are not formulas.
const phoneColumn = 4

const (
	statusActive   = "Active"
	statusInactive = "Inactive"
)

func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case XLSX, "":
		return XLSX, true
	case CSV:
		return CSV, true
	default:
		return "", false
	}
}

func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return XLSX, nil
	case ".csv":
		return CSV, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename builds an export file name stamped with t.
func (f Format) Filename(t time.Time) string {
	return "users-" + t.UTC().Format("20060102-150405") + "." + string(f)
}

// rowsToRequests maps sheet rows to create requests by header name. Rows keep
// their position so index i is sheet row i+2.
func rowsToRequests(rows [][]string) ([]user.CreateUserRequest, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	index := map[string]int{}
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := index[strings.ToLower(colEmail)]; !ok {
		return nil, ErrMissingColumns
	}

	get := func(row []string, col string) string {
		i, ok := index[strings.ToLower(col)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]user.CreateUserRequest, 0, len(rows)-1)
	for _, row := range rows[1:] {
		req := user.CreateUserRequest{
			Email:     get(row, colEmail),
			Phone:     get(row, colPhone),
			Password:  get(row, colPassword),
			FirstName: get(row, colFirstName),
			LastName:  get(row, colLastName),
			Address:   get(row, colAddress),
			Role:      parseRole(get(row, colRole)),
			IsActive:  parseStatus(get(row, colStatus)),
		}
		if v := get(row, colImageURL); v != "" {
			req.ImageURL = &v
		}
		out = append(out, req)
	}
	return out, nil
}

// parseRole keeps unknown values as-is so validation reports them.
func parseRole(s string) user.Role {
	if r, ok := user.ParseRole(s); ok {
		return r
	}
	return user.Role(s)
}

// parseStatus leaves an empty cell unset, which creates the user active.
func parseStatus(s string) *bool {
	var active bool
	switch strings.ToLower(s) {
	case "":
		return nil
	case "active", "true", "yes", "1":
		active = true
	}
	return &active
}

func userRow(u user.User) []string {
	status := statusInactive
	if u.IsActive {
		status = statusActive
	}
	image := ""
	if u.ImageURL != nil {
		image = *u.ImageURL
	}
	return []string{
		u.ID,
		u.Email,
		u.FirstName,
		u.LastName,
		u.Phone,
		string(u.Role),
		status,
		u.CreatedAt.UTC().Format(time.RFC3339),
		u.UpdatedAt.UTC().Format(time.RFC3339),
		u.Address,
		image,
	}
}
