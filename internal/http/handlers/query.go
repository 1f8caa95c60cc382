package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/geocoder89/staffauth/internal/validation"
	"github.com/gin-gonic/gin"
)

const dateOnly = "2006-01-02"

// parseCriteria reads the list/export query string. Every invalid parameter
// is reported, not just the first.
func parseCriteria(ctx *gin.Context) (user.Criteria, []FieldError) {
	var c user.Criteria
	var fields []FieldError

	fail := func(field, rule, param string) {
		fields = append(fields, FieldError{Field: field, Rule: rule, Param: param, Message: validation.Message(rule, param)})
	}

	if v := strings.TrimSpace(ctx.Query("search")); v != "" {
		if len(v) > 255 {
			fail("search", "max", "255")
		}
		c.Search = &v
	}

	if v := strings.TrimSpace(ctx.Query("role")); v != "" {
		role, ok := user.ParseRole(v)
		if !ok {
			fail("role", "role", "")
		} else {
			c.Role = &role
		}
	}

	if v := strings.TrimSpace(ctx.Query("isActive")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail("isActive", "boolean", "")
		} else {
			c.IsActive = &b
		}
	}

	start, startOK := parseDateParam(ctx, "startDate", false, fail)
	end, endOK := parseDateParam(ctx, "endDate", true, fail)
	switch {
	case startOK && endOK:
		if end.Before(*start) {
			fail("endDate", "gtefield", "startDate")
		}
		c.StartDate, c.EndDate = start, end
	case startOK && ctx.Query("endDate") == "":
		fail("endDate", "required_with", "startDate")
	case endOK && ctx.Query("startDate") == "":
		fail("startDate", "required_with", "endDate")
	}

	if v := strings.TrimSpace(ctx.Query("sortField")); v != "" {
		f := user.SortField(v)
		if !f.IsValid() {
			fail("sortField", "oneof", "id email phone firstName lastName address imageUrl role isActive createdAt updatedAt")
		}
		c.SortField = f
	}

	if v := strings.TrimSpace(ctx.Query("sortOrder")); v != "" {
		o := user.SortOrder(strings.ToUpper(v))
		if o != user.SortAsc && o != user.SortDesc {
			fail("sortOrder", "oneof", "ASC DESC")
		}
		c.SortOrder = o
	}

	c.Page = parsePositiveInt(ctx, "page", fail)
	c.Limit = parsePositiveInt(ctx, "limit", fail)

	return c, fields
}

// parseDateParam accepts RFC3339 or YYYY-MM-DD. A date-only end bound covers
// the whole day.
func parseDateParam(ctx *gin.Context, name string, endOfDay bool, fail func(field, rule, param string)) (*time.Time, bool) {
	v := strings.TrimSpace(ctx.Query(name))
	if v == "" {
		return nil, false
	}

	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, true
	}

	t, err := time.Parse(dateOnly, v)
	if err != nil {
		fail(name, "datetime", "RFC3339 or YYYY-MM-DD")
		return nil, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

func parsePositiveInt(ctx *gin.Context, name string, fail func(field, rule, param string)) int {
	v := strings.TrimSpace(ctx.Query(name))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		fail(name, "min", "1")
		return 0
	}
	return n
}
