package marketplace

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// NativeTransferProgram identifies the value-transfer program that royalty
// payments must target.
var NativeTransferProgram = func() [32]byte {
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256([]byte("nftmarket/native-transfer/v1")))
	return id
}()

// OpTransfer is the opcode of a native value transfer.
const OpTransfer uint32 = 2

// SettlementOp is one co-submitted operation accompanying a Buy request. The
// settlement protocol does not disburse royalties itself; it verifies that the
// caller bundled a matching transfer per creator, in declared order, and
// aborts the whole purchase on any mismatch. The amount is the operation's
// encoded little-endian payload and is compared byte for byte.
type SettlementOp struct {
	Program [32]byte
	Opcode  uint32
	Amount  [8]byte
	To      [20]byte
}

// EncodeAmount returns the little-endian wire form of an amount, as carried by
// a SettlementOp.
func EncodeAmount(v uint64) [8]byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf
}

// Buy settles a direct purchase at the listed price: the buyer pays the
// lister, the platform fee accrues to the marketplace's fee vault, the
// co-submitted royalty transfers are verified against the asset's metadata,
// and only then is the asset unlocked and handed over. Payment precedes asset
// release so a verification failure can never leave the asset transferred
// without payment; the host snapshot makes the whole sequence atomic.
func (e *Engine) Buy(listingID [32]byte, buyer [20]byte, coSubmitted []SettlementOp) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	market, err := e.loadMarketplace(listing.Marketplace)
	if err != nil {
		return err
	}
	price := cloneBigInt(listing.Price)
	if err := e.transferValue(buyer, listing.Lister, price); err != nil {
		return err
	}
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(market.FeeBps)))
	fee.Div(fee, big.NewInt(10_000))
	if err := e.transferValue(buyer, FeeVaultAddress(market.ID), fee); err != nil {
		return err
	}
	if err := e.verifyRoyalties(listing, price, coSubmitted); err != nil {
		return err
	}
	if err := e.releaseCustody(listing); err != nil {
		return err
	}
	custodian, err := e.listingAuthority(listing)
	if err != nil {
		return err
	}
	if err := e.ledger.Transfer(listing.Asset, listing.Lister, buyer, custodian); err != nil {
		return err
	}
	if err := e.state.ListingDelete(listingID); err != nil {
		return err
	}
	e.emit(NewSoldEvent(listing, buyer))
	return nil
}

// verifyRoyalties checks one co-submitted transfer per creator with a nonzero
// share, in declared order: right program, right opcode, byte-exact amount,
// right destination. Assets without royalty configuration skip verification.
func (e *Engine) verifyRoyalties(listing *Listing, price *big.Int, coSubmitted []SettlementOp) error {
	meta, err := e.ledger.Metadata(listing.Asset)
	if err != nil {
		return err
	}
	if meta.RoyaltyBps == 0 || len(meta.Creators) == 0 {
		return nil
	}
	pool := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(meta.RoyaltyBps)))
	pool.Div(pool, big.NewInt(10_000))
	next := 0
	for _, creator := range meta.Creators {
		if creator.Share == 0 {
			continue
		}
		amount := new(big.Int).Mul(pool, new(big.Int).SetUint64(uint64(creator.Share)))
		amount.Div(amount, big.NewInt(100))
		if !amount.IsUint64() {
			return ErrAmountOverflow
		}
		if next >= len(coSubmitted) {
			return ErrInvalidInstruction
		}
		op := coSubmitted[next]
		next++
		if op.Program != NativeTransferProgram {
			return ErrInvalidTokenProgram
		}
		if op.Opcode != OpTransfer {
			return ErrInvalidInstruction
		}
		if op.Amount != EncodeAmount(amount.Uint64()) {
			return ErrInvalidTransferAmount
		}
		if op.To != creator.Address {
			return ErrInvalidCreator
		}
	}
	return nil
}
