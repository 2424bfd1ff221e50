package repository

import "errors"

// Sentinel kinds for board errors.
var (
	ErrNotFound        = errors.New("player not found")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrInvalidRange    = errors.New("invalid range")
	ErrScoreOutOfRange = errors.New("score out of range")
)
