package marketplace

import (
	"encoding/hex"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeMarketplaceCreated = "marketplace.created"
	EventTypeListed             = "marketplace.listed"
	EventTypeDelisted           = "marketplace.delisted"
	EventTypeSold               = "marketplace.sold"
	EventTypeBidPlaced          = "marketplace.bid.placed"
	EventTypeBidModified        = "marketplace.bid.modified"
	EventTypeBidCancelled       = "marketplace.bid.cancelled"
	EventTypeBidAccepted        = "marketplace.bid.accepted"
)

// NewMarketplaceCreatedEvent returns the canonical payload for a newly
// initialised marketplace.
func NewMarketplaceCreatedEvent(m *Marketplace) *types.Event {
	attrs := make(map[string]string)
	if sanitized, err := SanitizeMarketplace(m); err == nil {
		attrs["id"] = hex.EncodeToString(sanitized.ID[:])
		attrs["admin"] = hex.EncodeToString(sanitized.Admin[:])
		attrs["feeBps"] = strconv.FormatUint(uint64(sanitized.FeeBps), 10)
		attrs["name"] = sanitized.Name
		attrs["createdAt"] = strconv.FormatUint(sanitized.CreatedAt, 10)
	}
	return &types.Event{Type: EventTypeMarketplaceCreated, Attributes: attrs}
}

// NewListedEvent returns the canonical payload emitted when an asset enters
// escrow under a new listing.
func NewListedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeListed, l, nil) }

// NewDelistedEvent returns the payload emitted when a lister withdraws a
// listing without a sale.
func NewDelistedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeDelisted, l, nil) }

// NewSoldEvent returns the payload emitted when a direct purchase settles.
func NewSoldEvent(l *Listing, buyer [20]byte) *types.Event {
	return newListingEvent(EventTypeSold, l, map[string]string{"buyer": hex.EncodeToString(buyer[:])})
}

// NewBidPlacedEvent returns the payload emitted when a bid escrows collateral.
func NewBidPlacedEvent(b *BidState) *types.Event { return newBidEvent(EventTypeBidPlaced, b) }

// NewBidModifiedEvent returns the payload emitted after an escrow top-up or
// partial refund.
func NewBidModifiedEvent(b *BidState) *types.Event { return newBidEvent(EventTypeBidModified, b) }

// NewBidCancelledEvent returns the payload emitted when a bid is cancelled and
// its escrow refunded.
func NewBidCancelledEvent(b *BidState) *types.Event { return newBidEvent(EventTypeBidCancelled, b) }

// NewBidAcceptedEvent returns the payload emitted when the lister accepts a
// bid and the trade settles.
func NewBidAcceptedEvent(l *Listing, b *BidState) *types.Event {
	evt := newBidEvent(EventTypeBidAccepted, b)
	if l != nil {
		evt.Attributes["asset"] = hex.EncodeToString(l.Asset[:])
		evt.Attributes["lister"] = hex.EncodeToString(l.Lister[:])
	}
	return evt
}

func newListingEvent(eventType string, l *Listing, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if sanitized, err := SanitizeListing(l); err == nil {
		attrs["id"] = hex.EncodeToString(sanitized.ID[:])
		attrs["marketplace"] = hex.EncodeToString(sanitized.Marketplace[:])
		attrs["lister"] = hex.EncodeToString(sanitized.Lister[:])
		attrs["asset"] = hex.EncodeToString(sanitized.Asset[:])
		attrs["collection"] = hex.EncodeToString(sanitized.Collection[:])
		attrs["price"] = sanitized.Price.String()
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newBidEvent(eventType string, b *BidState) *types.Event {
	attrs := make(map[string]string)
	if sanitized, err := SanitizeBid(b); err == nil {
		attrs["id"] = hex.EncodeToString(sanitized.ID[:])
		attrs["listing"] = hex.EncodeToString(sanitized.Listing[:])
		attrs["bidder"] = hex.EncodeToString(sanitized.Bidder[:])
		attrs["price"] = sanitized.Price.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
