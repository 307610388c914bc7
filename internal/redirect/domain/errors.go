package domain

import "errors"

var (
	ErrLinkNotFound       = errors.New("link not found")
	ErrInvalidDestination = errors.New("invalid destination url")
)
