package repository

import "errors"

var (
	ErrNotFound = errors.New("event not found")

	ErrRuleNotFound = errors.New("recurrence rule not found")

	ErrLockHeld = errors.New("advisory lock already held")
)
