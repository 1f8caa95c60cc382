package user

type CreateUserRequest struct {
	Email     string  `json:"email" binding:"required,email,max=255"`
	Phone     string  `json:"phone" binding:"required,phone"`
	Password  string  `json:"password" binding:"required,min=8,max=72,strongpassword"`
	FirstName string  `json:"firstName" binding:"required,notblank,max=255"`
	LastName  string  `json:"lastName" binding:"required,notblank,max=255"`
	Address   string  `json:"address" binding:"required,notblank,max=255"`
	ImageURL  *string `json:"imageUrl" binding:"omitempty,max=255"`
	Role      Role    `json:"role" binding:"omitempty,role"`
	IsActive  *bool   `json:"isActive"`
}

// UpdateUserRequest is a partial update; absent fields keep their value.
// Passwords are changed through UpdatePasswordRequest only.
type UpdateUserRequest struct {
	Email     *string `json:"email" binding:"omitempty,email,max=255"`
	Phone     *string `json:"phone" binding:"omitempty,phone"`
	FirstName *string `json:"firstName" binding:"omitnil,notblank,max=255"`
	LastName  *string `json:"lastName" binding:"omitnil,notblank,max=255"`
	Address   *string `json:"address" binding:"omitnil,notblank,max=255"`
	ImageURL  *string `json:"imageUrl" binding:"omitempty,max=255"`
	Role      *Role   `json:"role" binding:"omitempty,role"`
	IsActive  *bool   `json:"isActive"`
}

func (r UpdateUserRequest) Patch() Patch {
	return Patch{
		Email:     r.Email,
		Phone:     r.Phone,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Address:   r.Address,
		ImageURL:  r.ImageURL,
		Role:      r.Role,
		IsActive:  r.IsActive,
	}
}

// The confirm check lives here, on the request shape, so a mismatch is a 400
// before the service is reached.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=NewPassword"`
}

type DeleteUsersRequest struct {
	IDs []string `json:"ids" binding:"required,dive,uuid"`
}
