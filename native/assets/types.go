package assets

import "fmt"

// AssetID identifies a non-fungible asset by its mint address.
type AssetID [32]byte

// Standard enumerates the asset standards recorded by the metadata registry.
type Standard uint8

const (
	StandardNonFungible Standard = iota
	StandardFungible
	StandardFungibleAsset
	StandardNonFungibleEdition
)

// Valid reports whether the standard value is within the supported range.
func (s Standard) Valid() bool {
	switch s {
	case StandardNonFungible, StandardFungible, StandardFungibleAsset, StandardNonFungibleEdition:
		return true
	default:
		return false
	}
}

// Collection records an asset's collection membership. Membership only counts
// once the collection authority has verified it.
type Collection struct {
	Key      AssetID
	Verified bool
}

// Creator is one entry of an asset's royalty split. Shares are expressed in
// whole percent and sum to 100 across the creator list.
type Creator struct {
	Address [20]byte
	Share   uint8
}

// Metadata mirrors the immutable registry fields consumed by the marketplace:
// standard, verified collection and royalty configuration.
type Metadata struct {
	Asset      AssetID
	Standard   Standard
	Collection Collection
	RoyaltyBps uint32
	Creators   []Creator
}

// Clone returns a deep copy of the metadata record.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Creators != nil {
		clone.Creators = append([]Creator(nil), m.Creators...)
	}
	return &clone
}

// SanitizeMetadata validates a metadata record, returning a cloned instance.
func SanitizeMetadata(m *Metadata) (*Metadata, error) {
	if m == nil {
		return nil, fmt.Errorf("assets: nil metadata")
	}
	clone := m.Clone()
	if !clone.Standard.Valid() {
		return nil, fmt.Errorf("assets: invalid standard %d", clone.Standard)
	}
	if clone.RoyaltyBps > 10_000 {
		return nil, fmt.Errorf("assets: royalty bps out of range: %d", clone.RoyaltyBps)
	}
	total := 0
	for _, creator := range clone.Creators {
		total += int(creator.Share)
	}
	if len(clone.Creators) > 0 && total != 100 {
		return nil, fmt.Errorf("assets: creator shares must sum to 100, got %d", total)
	}
	return clone, nil
}

// Holding tracks one address's balance of an asset together with its custody
// flags. A non-fungible holding carries amount one; the delegate, when set, is
// the only authority besides the holder able to move the asset, and a locked
// holding cannot move at all until the delegate unlocks it.
type Holding struct {
	Asset    AssetID
	Holder   [20]byte
	Amount   uint64
	Delegate [20]byte
	Locked   bool
}

// Clone returns a copy of the holding.
func (h *Holding) Clone() *Holding {
	if h == nil {
		return nil
	}
	clone := *h
	return &clone
}

// Delegated reports whether a transfer delegate is currently set.
func (h *Holding) Delegated() bool {
	return h != nil && h.Delegate != ([20]byte{})
}
