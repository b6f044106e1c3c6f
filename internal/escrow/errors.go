package escrow

import "errors"

var (
	ErrNotFound       = errors.New("game not found")
	ErrDuplicateGame  = errors.New("game already exists")
	ErrForbidden      = errors.New("caller not allowed")
	ErrInvalidOutcome = errors.New("invalid outcome")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNotOpen        = errors.New("game isn't open to bets")
	ErrNotClosed      = errors.New("game isn't closed")
	ErrNotSettled     = errors.New("game isn't settled")
	ErrTransferFailed = errors.New("asset transfer failed")
)
