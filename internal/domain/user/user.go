package user

import (
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Address      string    `json:"address"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Patch carries the columns an update touches. Nil fields are left alone.
type Patch struct {
	Email     *string
	Phone     *string
	FirstName *string
	LastName  *string
	Address   *string
	ImageURL  *string
	Role      *Role
	IsActive  *bool
}

func (p Patch) IsEmpty() bool {
	return p.Email == nil && p.Phone == nil && p.FirstName == nil && p.LastName == nil &&
		p.Address == nil && p.ImageURL == nil && p.Role == nil && p.IsActive == nil
}

// Apply copies the set fields of p onto u.
func (p Patch) Apply(u *User) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.ImageURL != nil {
		v := *p.ImageURL
		u.ImageURL = &v
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
}

// NormalizeEmail trims and lower-cases an address so lookups and the unique
// constraint agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
