package core

import "errors"

// Sentinel errors shared across the engine and its storage adapters.
var (
	// ErrUnknownActivity marks an activity type with no reward catalog entry.
	ErrUnknownActivity = errors.New("unknown activity type")

	// ErrInvalidAmount marks a non-positive award or spend amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance marks a spend larger than the current balance.
	// The balance check and decrement are one atomic conditional operation;
	// the balance is unchanged when this is returned.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUserNotFound marks a lookup for a user with no wallet.
	ErrUserNotFound = errors.New("user not found")
)
