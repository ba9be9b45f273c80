package domain

import "errors"

// Storage-level sentinels. Services translate them into apperror values.
var (
	ErrWalletExists  = errors.New("wallet already exists for user")
	ErrCodeTaken     = errors.New("wallet code already taken")
	ErrUnknownWallet = errors.New("referenced wallet does not exist")
)
