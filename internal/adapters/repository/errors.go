package repository

import "errors"

var (
	// ErrStoreClosed is returned when recording after Close.
	ErrStoreClosed = errors.New("shot store is closed")
)
