package auth

import "errors"

var (
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidToken  = errors.New("invalid token")
	ErrEmptyPassword = errors.New("password cannot be empty")
)
