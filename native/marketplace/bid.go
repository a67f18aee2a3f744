package marketplace

import (
	"math/big"
)

// BidVaultAddress returns the custody account escrowing a bid's collateral.
func BidVaultAddress(bidID [32]byte) [20]byte {
	id := DeriveID(tagBidVault, bidID[:])
	var addr [20]byte
	copy(addr[:], id[12:])
	return addr
}

// bidVault resolves the bid's vault address together with its capability
// proof, validated before the engine spends from the escrow.
func (e *Engine) bidVault(bidID [32]byte) ([20]byte, error) {
	addr, proof := e.deriver.Derive(tagBidVault, bidID[:])
	return e.withAuthority(addr, proof)
}

// Bid escrows the amount into a vault derived from the bid and records the
// bidder's standing offer. Each bidder holds at most one live bid per listing;
// the amount may exceed the listing price.
func (e *Engine) Bid(listingID [32]byte, bidder [20]byte, amount *big.Int) (*BidState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.loadListing(listingID); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	bidID := BidID(listingID, bidder)
	if _, ok := e.state.BidGet(bidID); ok {
		return nil, ErrBidExists
	}
	vault := BidVaultAddress(bidID)
	if err := e.transferValue(bidder, vault, amount); err != nil {
		return nil, err
	}
	if err := e.state.VaultCredit(bidID, amount); err != nil {
		return nil, err
	}
	bid := &BidState{
		ID:        bidID,
		Listing:   listingID,
		Bidder:    bidder,
		Price:     cloneBigInt(amount),
		CreatedAt: e.now(),
	}
	if err := e.state.BidPut(bid); err != nil {
		return nil, err
	}
	e.emit(NewBidPlacedEvent(bid))
	return bid.Clone(), nil
}

// ModifyBid adjusts the escrow to match the new price: a raise tops up the
// vault from the bidder, a reduction refunds the difference under the bid's
// capability authority. Zero and no-change amounts are rejected before any
// mutation.
func (e *Engine) ModifyBid(listingID [32]byte, bidder [20]byte, amount *big.Int) (*BidState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bidID := BidID(listingID, bidder)
	bid, err := e.loadBid(bidID)
	if err != nil {
		return nil, err
	}
	if bid.Bidder != bidder {
		return nil, ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(bid.Price) == 0 {
		return nil, ErrInvalidAmount
	}
	if amount.Cmp(bid.Price) > 0 {
		delta := new(big.Int).Sub(amount, bid.Price)
		if err := e.transferValue(bidder, BidVaultAddress(bidID), delta); err != nil {
			return nil, err
		}
		if err := e.state.VaultCredit(bidID, delta); err != nil {
			return nil, err
		}
	} else {
		delta := new(big.Int).Sub(bid.Price, amount)
		vault, err := e.bidVault(bidID)
		if err != nil {
			return nil, err
		}
		if err := e.transferValue(vault, bidder, delta); err != nil {
			return nil, err
		}
		if err := e.state.VaultDebit(bidID, delta); err != nil {
			return nil, err
		}
	}
	bid.Price = cloneBigInt(amount)
	if err := e.state.BidPut(bid); err != nil {
		return nil, err
	}
	e.emit(NewBidModifiedEvent(bid))
	return bid.Clone(), nil
}

// CancelBid refunds the vault's full balance to the bidder and closes the bid.
func (e *Engine) CancelBid(listingID [32]byte, bidder [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	bidID := BidID(listingID, bidder)
	bid, err := e.loadBid(bidID)
	if err != nil {
		return err
	}
	if bid.Bidder != bidder {
		return ErrUnauthorized
	}
	if err := e.closeBidVault(bidID, bidder); err != nil {
		return err
	}
	if err := e.state.BidDelete(bidID); err != nil {
		return err
	}
	e.emit(NewBidCancelledEvent(bid))
	return nil
}

// AcceptBid settles a listing against one standing bid: the escrowed
// collateral moves to the lister in full, the asset moves to the bidder and
// both records close. Unlike Buy, no fee or royalty split applies here; the
// whole vault balance is forwarded.
func (e *Engine) AcceptBid(listingID [32]byte, caller, bidder [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	if caller != listing.Lister {
		return ErrUnauthorized
	}
	bidID := BidID(listingID, bidder)
	bid, err := e.loadBid(bidID)
	if err != nil {
		return err
	}
	if bid.Bidder != bidder {
		return ErrUnauthorized
	}
	if err := e.closeBidVault(bidID, listing.Lister); err != nil {
		return err
	}
	if err := e.state.BidDelete(bidID); err != nil {
		return err
	}
	if err := e.releaseCustody(listing); err != nil {
		return err
	}
	custodian, err := e.listingAuthority(listing)
	if err != nil {
		return err
	}
	if err := e.ledger.Transfer(listing.Asset, listing.Lister, bidder, custodian); err != nil {
		return err
	}
	if err := e.state.ListingDelete(listingID); err != nil {
		return err
	}
	e.emit(NewBidAcceptedEvent(listing, bid))
	return nil
}

// closeBidVault pays the vault's entire balance to the destination and clears
// the escrow ledger, under the bid's capability authority.
func (e *Engine) closeBidVault(bidID [32]byte, destination [20]byte) error {
	balance, err := e.state.VaultBalance(bidID)
	if err != nil {
		return err
	}
	vault, err := e.bidVault(bidID)
	if err != nil {
		return err
	}
	if err := e.transferValue(vault, destination, balance); err != nil {
		return err
	}
	return e.state.VaultDebit(bidID, balance)
}
