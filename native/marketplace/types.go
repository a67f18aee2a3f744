package marketplace

import (
	"fmt"
	"math/big"
	"strings"

	"nftmarket/native/assets"
)

// maxNameLen bounds the marketplace name used as derivation material.
const maxNameLen = 32

// Marketplace is the root configuration record: admin identity, platform fee
// and human-readable name. The identifier is derived from the name and admin,
// so the pair scopes marketplace uniqueness. Created once, never mutated.
type Marketplace struct {
	ID        [32]byte
	Admin     [20]byte
	FeeBps    uint16
	Name      string
	CreatedAt uint64
}

// Clone returns a copy of the marketplace record.
func (m *Marketplace) Clone() *Marketplace {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Listing advertises one asset for sale at a fixed price. While the record
// exists the asset sits locked under the listing's capability authority. The
// identifier derives from the marketplace alone, so a marketplace carries at
// most one live listing at a time.
type Listing struct {
	ID          [32]byte
	Marketplace [32]byte
	Lister      [20]byte
	Asset       assets.AssetID
	Collection  assets.AssetID
	Price       *big.Int
	CreatedAt   uint64
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// BidState is a bidder's standing offer on a listing, keyed by (listing,
// bidder) so each bidder holds at most one live bid. The stored price always
// equals the escrow held in the bid's vault.
type BidState struct {
	ID        [32]byte
	Listing   [32]byte
	Bidder    [20]byte
	Price     *big.Int
	CreatedAt uint64
}

// Clone returns a deep copy of the bid state.
func (b *BidState) Clone() *BidState {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Price != nil {
		clone.Price = new(big.Int).Set(b.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// NormalizeName canonicalises a marketplace name for derivation and storage.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("marketplace: name must not be empty")
	}
	if len(trimmed) > maxNameLen {
		return "", fmt.Errorf("marketplace: name exceeds %d bytes", maxNameLen)
	}
	return trimmed, nil
}

// SanitizeMarketplace validates the record and returns a cloned instance with
// a canonical name. The original value is not mutated.
func SanitizeMarketplace(m *Marketplace) (*Marketplace, error) {
	if m == nil {
		return nil, fmt.Errorf("marketplace: nil marketplace")
	}
	clone := m.Clone()
	name, err := NormalizeName(clone.Name)
	if err != nil {
		return nil, err
	}
	clone.Name = name
	if clone.FeeBps > 10_000 {
		return nil, fmt.Errorf("marketplace: fee bps out of range: %d", clone.FeeBps)
	}
	return clone, nil
}

// SanitizeListing validates the record and returns a cloned instance with a
// non-nil price.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("marketplace: nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("marketplace: listing price must be non-negative")
	}
	return clone, nil
}

// SanitizeBid validates the record and returns a cloned instance with a
// non-nil price.
func SanitizeBid(b *BidState) (*BidState, error) {
	if b == nil {
		return nil, fmt.Errorf("marketplace: nil bid")
	}
	clone := b.Clone()
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("marketplace: bid price must be non-negative")
	}
	return clone, nil
}
