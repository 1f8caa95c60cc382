package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/staffauth/internal/config"
	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/geocoder89/staffauth/internal/http/middlewares"
	"github.com/geocoder89/staffauth/internal/service"
	"github.com/gin-gonic/gin"
)

// Headers set by the verify endpoint for a forwarding gateway.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
)

type LoginService interface {
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
}

// scopes are the canned allow-lists a sibling service can ask about.
var scopes = map[string]user.RoleSet{
	"admin":   user.AdminOnly,
	"cashier": user.AdminCashier,
	"kitchen": user.AdminKitchen,
	"waiter":  user.AdminWaiter,
}

type AuthHandler struct {
	auth    LoginService
	metrics middlewares.FailureRecorder
	log     *slog.Logger
}

func NewAuthHandler(auth LoginService, metrics middlewares.FailureRecorder, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{auth: auth, metrics: metrics, log: log}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt dominates here, not the lookup
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	result, err := h.auth.Login(cctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidCredentials):
			h.record("invalid_credentials")
		case errors.Is(err, user.ErrAccountInactive):
			h.record("account_inactive")
		}
		respondServiceError(ctx, h.log, "login", err)
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user logged in",
		"user_id", result.User.ID,
		"role", result.User.Role,
	)

	ctx.JSON(http.StatusOK, result)
}

// Me returns the live record the token resolved to.
func (h *AuthHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "token_required", "Access token is required.")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// Verify answers whether the caller may use a scope. Gateways forward the
// identity headers to the upstream on 200.
func (h *AuthHandler) Verify(ctx *gin.Context) {
	allowed, ok := scopes[ctx.Param("scope")]
	if !ok {
		RespondNotFound(ctx, "Unknown scope.")
		return
	}

	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "token_required", "Access token is required.")
		return
	}

	if !allowed.Allows(u.Role) {
		h.record("forbidden")
		RespondForbidden(ctx, "forbidden", "You do not have permission to perform this action.")
		return
	}

	ctx.Header(HeaderUserID, u.ID)
	ctx.Header(HeaderUserRole, string(u.Role))
	ctx.Header(HeaderUserEmail, u.Email)

	ctx.JSON(http.StatusOK, gin.H{
		"id":    u.ID,
		"email": u.Email,
		"role":  u.Role,
	})
}

func (h *AuthHandler) record(reason string) {
	if h.metrics != nil {
		h.metrics.RecordAuthFailure(reason)
	}
}
