package access

import "errors"

var (
	ErrNotFound      = errors.New("access: not found")
	ErrAlreadyExists = errors.New("access: already exists")
	ErrInvalidInput  = errors.New("access: invalid input")
)
