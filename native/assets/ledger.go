package assets

import (
	"errors"
	"fmt"
)

var (
	errNilState        = errors.New("asset ledger: state not configured")
	ErrHoldingNotFound = errors.New("asset ledger: holding not found")
	ErrAssetNotFound   = errors.New("asset ledger: metadata not found")
	ErrHoldingLocked   = errors.New("asset ledger: holding locked")
	ErrNotDelegate     = errors.New("asset ledger: caller is not the delegate")
	ErrUnauthorized    = errors.New("asset ledger: unauthorized caller")
	ErrInsufficient    = errors.New("asset ledger: insufficient holding")
)

type ledgerState interface {
	HoldingGet(asset AssetID, holder [20]byte) (*Holding, bool)
	HoldingPut(*Holding) error
	HoldingDelete(asset AssetID, holder [20]byte) error
	MetadataGet(asset AssetID) (*Metadata, bool)
}

// Ledger implements the token-ledger primitives the marketplace relies on:
// delegation, lock/unlock and single-unit transfers. Authority checks are by
// caller address; the marketplace engine resolves capability proofs to
// addresses before invoking the ledger.
type Ledger struct {
	state ledgerState
}

// NewLedger creates an asset ledger with no state backend configured.
func NewLedger() *Ledger {
	return &Ledger{}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// Metadata returns the registry record for the asset.
func (l *Ledger) Metadata(asset AssetID) (*Metadata, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	meta, ok := l.state.MetadataGet(asset)
	if !ok {
		return nil, ErrAssetNotFound
	}
	return meta.Clone(), nil
}

// Holding returns the holding record for (asset, holder).
func (l *Ledger) Holding(asset AssetID, holder [20]byte) (*Holding, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	holding, ok := l.state.HoldingGet(asset, holder)
	if !ok {
		return nil, ErrHoldingNotFound
	}
	return holding.Clone(), nil
}

// Delegate grants transfer authority over the holding to the delegate address.
// Only the holder may delegate, and not while the holding is locked.
func (l *Ledger) Delegate(asset AssetID, holder, caller, delegate [20]byte) error {
	holding, err := l.Holding(asset, holder)
	if err != nil {
		return err
	}
	if caller != holder {
		return ErrUnauthorized
	}
	if holding.Locked {
		return ErrHoldingLocked
	}
	if holding.Amount == 0 {
		return ErrInsufficient
	}
	holding.Delegate = delegate
	return l.state.HoldingPut(holding)
}

// Revoke removes the current delegate. The holder or the delegate itself may
// revoke; a locked holding must be unlocked first.
func (l *Ledger) Revoke(asset AssetID, holder, caller [20]byte) error {
	holding, err := l.Holding(asset, holder)
	if err != nil {
		return err
	}
	if caller != holder && (!holding.Delegated() || caller != holding.Delegate) {
		return ErrUnauthorized
	}
	if holding.Locked {
		return ErrHoldingLocked
	}
	holding.Delegate = [20]byte{}
	return l.state.HoldingPut(holding)
}

// Lock freezes the holding so not even its holder can move it. Only the
// current delegate may lock.
func (l *Ledger) Lock(asset AssetID, holder, caller [20]byte) error {
	holding, err := l.Holding(asset, holder)
	if err != nil {
		return err
	}
	if !holding.Delegated() || caller != holding.Delegate {
		return ErrNotDelegate
	}
	holding.Locked = true
	return l.state.HoldingPut(holding)
}

// Unlock lifts the freeze. Only the current delegate may unlock.
func (l *Ledger) Unlock(asset AssetID, holder, caller [20]byte) error {
	holding, err := l.Holding(asset, holder)
	if err != nil {
		return err
	}
	if !holding.Delegated() || caller != holding.Delegate {
		return ErrNotDelegate
	}
	holding.Locked = false
	return l.state.HoldingPut(holding)
}

// Transfer moves exactly one unit of the asset from one holder to another. The
// caller must be the holder or its delegate and the holding must be unlocked.
// The source holding is removed once empty; delegation does not follow the
// asset to its new holder.
func (l *Ledger) Transfer(asset AssetID, from, to, caller [20]byte) error {
	holding, err := l.Holding(asset, from)
	if err != nil {
		return err
	}
	if caller != from && (!holding.Delegated() || caller != holding.Delegate) {
		return ErrUnauthorized
	}
	if holding.Locked {
		return ErrHoldingLocked
	}
	if holding.Amount < 1 {
		return ErrInsufficient
	}
	dest, ok := l.state.HoldingGet(asset, to)
	if !ok {
		dest = &Holding{Asset: asset, Holder: to}
	} else {
		dest = dest.Clone()
	}
	if dest.Amount+1 < dest.Amount {
		return fmt.Errorf("asset ledger: destination amount overflow")
	}
	dest.Amount++
	holding.Amount--
	if holding.Amount == 0 {
		if err := l.state.HoldingDelete(asset, from); err != nil {
			return err
		}
	} else {
		if err := l.state.HoldingPut(holding); err != nil {
			return err
		}
	}
	return l.state.HoldingPut(dest)
}
