package user

import "errors"

var (
	ErrNotFound             = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrDuplicatePhone       = errors.New("phone number already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrSamePassword         = errors.New("new password must differ from the current password")
	ErrEmptyInput           = errors.New("no user ids provided")
)
