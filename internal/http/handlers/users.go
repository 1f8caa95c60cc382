package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/staffauth/internal/config"
	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/geocoder89/staffauth/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestTimeout = 3 * time.Second

type UserService interface {
	Create(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	Get(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context, c user.Criteria) (service.Page, error)
	Update(ctx context.Context, id string, req user.UpdateUserRequest) (user.User, error)
	UpdatePassword(ctx context.Context, id string, req user.UpdatePasswordRequest) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteMany(ctx context.Context, ids []string) (bool, error)
	ImportMany(ctx context.Context, rows []user.CreateUserRequest) service.ImportResult
	ExportAll(ctx context.Context, c user.Criteria) ([]user.User, error)
}

type UsersHandler struct {
	users       UserService
	log         *slog.Logger
	maxUpload   int64
	exportClock func() time.Time
}

func NewUsersHandler(users UserService, maxUpload int64, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		users:       users,
		log:         log,
		maxUpload:   maxUpload,
		exportClock: time.Now,
	}
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	created, err := h.users.Create(cctx, req)
	if err != nil {
		respondServiceError(ctx, h.log, "create user", err)
		return
	}

	ctx.Header("Location", "/users/"+created.ID)
	ctx.JSON(http.StatusCreated, created)
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	criteria, fields := parseCriteria(ctx)
	if len(fields) > 0 {
		respondFieldErrors(ctx, "Invalid query parameters", fields)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	page, err := h.users.List(cctx, criteria)
	if err != nil {
		respondServiceError(ctx, h.log, "list users", err)
		return
	}

	ctx.JSON(http.StatusOK, page)
}

func (h *UsersHandler) GetUserByID(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	u, err := h.users.Get(cctx, id)
	if err != nil {
		respondServiceError(ctx, h.log, "get user", err)
		return
	}

	respondUserWithETag(ctx, u)
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req user.UpdateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	updated, err := h.users.Update(cctx, id, req)
	if err != nil {
		respondServiceError(ctx, h.log, "update user", err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *UsersHandler) UpdatePassword(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req user.UpdatePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	// two bcrypt rounds
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.users.UpdatePassword(cctx, id, req); err != nil {
		respondServiceError(ctx, h.log, "update password", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated."})
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	deleted, err := h.users.Delete(cctx, id)
	if err != nil {
		respondServiceError(ctx, h.log, "delete user", err)
		return
	}
	if !deleted {
		RespondNotFound(ctx, "User not found.")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *UsersHandler) DeleteUsers(ctx *gin.Context) {
	var req user.DeleteUsersRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	deleted, err := h.users.DeleteMany(cctx, req.IDs)
	if err != nil {
		respondServiceError(ctx, h.log, "delete users", err)
		return
	}
	if !deleted {
		RespondNotFound(ctx, "No matching users.")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func pathID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_id", "User id must be a UUID.", nil)
		return "", false
	}
	return id, true
}
