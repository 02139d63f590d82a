package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLockHeld           = errors.New("lock already held")
	ErrAuctionNotActive   = errors.New("auction not active")
	ErrInvalidTransition  = errors.New("invalid auction status transition")
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrInvalidStrategy    = errors.New("invalid strategy")
)
