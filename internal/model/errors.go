package model

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUpgradeRequired = errors.New("upgrade required")
	ErrQuotaExceeded   = errors.New("daily limit reached")
	ErrUpstream        = errors.New("completion upstream unavailable")
)
