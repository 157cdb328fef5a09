package app

import errorsmod "cosmossdk.io/errors"

// ModuleName is the error codespace and log module of the settlement engine.
const ModuleName = "roulette"

// Settlement sentinel errors. All of them are terminal for the triggering
// tx: retrying the same input reproduces the same error.
var (
	ErrInvalidRequest = errorsmod.Register(ModuleName, 1, "invalid request")

	// Validation errors.
	ErrInvalidOutcomeIndex = errorsmod.Register(ModuleName, 2, "invalid outcome index")
	ErrInsufficientFunds   = errorsmod.Register(ModuleName, 3, "insufficient funds")

	// State errors.
	ErrGameNotOpen       = errorsmod.Register(ModuleName, 4, "round is not in the required state")
	ErrNoParticipants    = errorsmod.Register(ModuleName, 5, "round has no participants")
	ErrNotASurvivor      = errorsmod.Register(ModuleName, 6, "entry did not back the surviving outcome")
	ErrAlreadyClaimed    = errorsmod.Register(ModuleName, 7, "payout already claimed")
	ErrAlreadyEntered    = errorsmod.Register(ModuleName, 8, "participant already entered this round")
	ErrAlreadyExists     = errorsmod.Register(ModuleName, 9, "round already exists")
	ErrAccountNotFound   = errorsmod.Register(ModuleName, 10, "account not found")
	ErrNoSurvivors       = errorsmod.Register(ModuleName, 11, "no survivors for the resolved outcome")
	ErrClaimsOutstanding = errorsmod.Register(ModuleName, 12, "survivors have unclaimed payouts")
	ErrArithmetic        = errorsmod.Register(ModuleName, 13, "arithmetic overflow")

	// Authorization errors.
	ErrUnauthorized    = errorsmod.Register(ModuleName, 14, "unauthorized")
	ErrAccountMismatch = errorsmod.Register(ModuleName, 15, "account does not match its binding")
)
