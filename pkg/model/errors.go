package model

import "errors"

var (
	ErrInvalidWindow = errors.New("window end must be after start")
)
