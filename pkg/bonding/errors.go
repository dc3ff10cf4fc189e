package bonding

import "errors"

var (
	ErrZeroAmount       = errors.New("amount must be positive")
	ErrPaused           = errors.New("curve is paused")
	ErrUnauthorized     = errors.New("caller is not the owner")
	ErrSlippageExceeded = errors.New("price moved beyond the caller's bound")
	ErrCapExceeded      = errors.New("purchase would exceed the milestone cap")
	ErrCapBelowSupply   = errors.New("milestone cap is below the current supply")
	ErrInsolventReserve = errors.New("reward exceeds the reserve balance")

	// ErrPreMintNotCovered rejects sells that would dip into pre-minted
	// supply before enough has been bought back through the curve.
	ErrPreMintNotCovered = errors.New("sale not covered by curve purchases")
)
