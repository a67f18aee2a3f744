package marketplace

import "errors"

var (
	errNilState  = errors.New("marketplace engine: state not configured")
	errNilLedger = errors.New("marketplace engine: asset ledger not configured")

	ErrMarketplaceNotFound = errors.New("marketplace engine: marketplace not found")
	ErrMarketplaceExists   = errors.New("marketplace engine: marketplace already exists")
	ErrListingNotFound     = errors.New("marketplace engine: listing not found")
	ErrListingExists       = errors.New("marketplace engine: marketplace already has a live listing")
	ErrBidNotFound         = errors.New("marketplace engine: bid not found")
	ErrBidExists           = errors.New("marketplace engine: bidder already has a live bid")
	ErrUnauthorized        = errors.New("marketplace engine: unauthorized caller")
	ErrInvalidAuthority    = errors.New("marketplace engine: capability proof mismatch")
	ErrInsufficientFunds   = errors.New("marketplace engine: insufficient balance")
	ErrAmountOverflow      = errors.New("marketplace engine: amount exceeds transferable range")

	// Listing validation, mirroring the reason codes surfaced to callers.
	ErrInvalidTokenStandard = errors.New("marketplace engine: not the right token standard")
	ErrInvalidCollection    = errors.New("marketplace engine: not the right collection")
	ErrInvalidAmount        = errors.New("marketplace engine: choose another amount")

	// Settlement verification of co-submitted royalty operations.
	ErrInvalidTokenProgram   = errors.New("marketplace settlement: invalid program")
	ErrInvalidInstruction    = errors.New("marketplace settlement: invalid instruction")
	ErrInvalidTransferAmount = errors.New("marketplace settlement: invalid amount")
	ErrInvalidCreator        = errors.New("marketplace settlement: invalid creator")
)
