package user

import "time"

type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// SortField names a sortable attribute using its JSON name.
type SortField string

const (
	SortByID        SortField = "id"
	SortByEmail     SortField = "email"
	SortByPhone     SortField = "phone"
	SortByFirstName SortField = "firstName"
	SortByLastName  SortField = "lastName"
	SortByAddress   SortField = "address"
	SortByImageURL  SortField = "imageUrl"
	SortByRole      SortField = "role"
	SortByIsActive  SortField = "isActive"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

func (f SortField) IsValid() bool {
	switch f {
	case SortByID, SortByEmail, SortByPhone, SortByFirstName, SortByLastName, SortByAddress,
		SortByImageURL, SortByRole, SortByIsActive, SortByCreatedAt, SortByUpdatedAt:
		return true
	default:
		return false
	}
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Criteria drives filtering, sorting and pagination of users. Pointer fields
// are optional filters; nil means the filter is not applied. All filters
// compose with AND.
type Criteria struct {
	Search    *string
	Role      *Role
	IsActive  *bool
	StartDate *time.Time
	EndDate   *time.Time
	SortField SortField
	SortOrder SortOrder
	Page      int
	Limit     int
}

// Normalize fills in defaults. With no sort field the order is newest first;
// with a field and no order it is ascending.
func (c Criteria) Normalize() Criteria {
	if c.Search != nil && *c.Search == "" {
		c.Search = nil
	}
	if c.SortField == "" || !c.SortField.IsValid() {
		c.SortField = SortByCreatedAt
		c.SortOrder = SortDesc
	} else if c.SortOrder != SortAsc && c.SortOrder != SortDesc {
		c.SortOrder = SortAsc
	}
	if c.Page < 1 {
		c.Page = DefaultPage
	}
	if c.Limit < 1 {
		c.Limit = DefaultLimit
	}
	if c.Limit > MaxLimit {
		c.Limit = MaxLimit
	}
	return c
}

func (c Criteria) Offset() int {
	return (c.Page - 1) * c.Limit
}

// HasDateRange reports whether both bounds are set; a half-open range is ignored.
func (c Criteria) HasDateRange() bool {
	return c.StartDate != nil && c.EndDate != nil
}
