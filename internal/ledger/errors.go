package ledger

import "errors"

// Sentinel errors for action failures. An action that fails with one of
// these leaves both the agent and the global ledger untouched.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrUnknownAgent          = errors.New("unknown agent")
)
