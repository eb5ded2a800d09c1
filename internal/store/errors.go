package store

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrAmbiguousUsername = errors.New("username matches multiple users")
)
