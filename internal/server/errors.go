package server

import "errors"

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrInvalidConfig  = errors.New("invalid server configuration")
)
