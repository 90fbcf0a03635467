package domain

import "errors"

// Storage sentinels. Repositories return these (possibly wrapped) and
// services translate them into apperror values.
var (
	ErrNotFound            = errors.New("not found")
	ErrVersionConflict     = errors.New("wallet version conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrDuplicateKey        = errors.New("duplicate key")

	ErrTokenAlreadyRedeemed = errors.New("token already redeemed")
	ErrTokenExpired         = errors.New("token expired")
)
