package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// respondUserWithETag writes a single user record with a strong validator
// derived from its public JSON form. Staff records are personal data, so
// shared caches must not keep them.
func respondUserWithETag(ctx *gin.Context, u user.User) {
	ctx.Header("Cache-Control", "private, no-cache")

	tag, err := userETag(u)
	if err != nil {
		ctx.JSON(http.StatusOK, u)
		return
	}
	ctx.Header("ETag", tag)

	if etagMatches(ctx.GetHeader("If-None-Match"), tag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func userETag(u user.User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:16]) + `"`, nil
}

// etagMatches applies weak comparison, so W/"x" matches "x".
func etagMatches(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == tag {
			return true
		}
	}
	return false
}
