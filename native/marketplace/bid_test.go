package marketplace

import (
	"math/big"
	"testing"

	"nftmarket/native/assets"
)

// listedFixture stands up a marketplace with one listing and one funded bidder.
type listedFixture struct {
	state   *mockState
	engine  *Engine
	emitter *capturingEmitter
	lister  [20]byte
	bidder  [20]byte
	asset   assets.AssetID
	listing *Listing
}

func newListedFixture(t *testing.T, price, bidderFunds int64) *listedFixture {
	t.Helper()
	state := newMockState()
	engine := newTestEngine(t, state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)

	admin := newTestAddress(0x01)
	lister := newTestAddress(0x02)
	bidder := newTestAddress(0x03)
	asset := newTestAsset(0xA1)
	collection := newTestAsset(0xC1)

	market := mustInitialize(t, engine, admin, "toys", 250)
	seedListedAsset(state, asset, collection, lister, 0, nil)
	listing := mustList(t, engine, state, market.ID, lister, asset, collection, price)
	state.setBalance(bidder, bidderFunds)

	return &listedFixture{
		state:   state,
		engine:  engine,
		emitter: emitter,
		lister:  lister,
		bidder:  bidder,
		asset:   asset,
		listing: listing,
	}
}

func (f *listedFixture) vaultBalance(t *testing.T, bidID [32]byte) *big.Int {
	t.Helper()
	balance, err := f.state.VaultBalance(bidID)
	if err != nil {
		t.Fatalf("vault balance: %v", err)
	}
	return balance
}

func TestBidEscrowsCollateral(t *testing.T) {
	f := newListedFixture(t, 1000, 5000)

	bid, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(800))
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if bid.ID != BidID(f.listing.ID, f.bidder) {
		t.Fatalf("unexpected bid id")
	}
	if bid.Price.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("unexpected bid price: %v", bid.Price)
	}
	if got := f.state.balance(f.bidder); got.Cmp(big.NewInt(4200)) != 0 {
		t.Fatalf("bidder balance = %v, want 4200", got)
	}
	if got := f.state.balance(BidVaultAddress(bid.ID)); got.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("vault account balance = %v, want 800", got)
	}
	if got := f.vaultBalance(t, bid.ID); got.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("vault ledger balance = %v, want 800", got)
	}
}

func TestBidValidations(t *testing.T) {
	f := newListedFixture(t, 1000, 5000)

	t.Run("unknown listing", func(t *testing.T) {
		var missing [32]byte
		if _, err := f.engine.Bid(missing, f.bidder, big.NewInt(800)); err != ErrListingNotFound {
			t.Fatalf("expected ErrListingNotFound, got %v", err)
		}
	})

	t.Run("nil amount", func(t *testing.T) {
		if _, err := f.engine.Bid(f.listing.ID, f.bidder, nil); err != ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("zero amount", func(t *testing.T) {
		if _, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(0)); err != ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		if _, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(9999)); err != ErrInsufficientFunds {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
	})

	t.Run("duplicate bid", func(t *testing.T) {
		if _, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(800)); err != nil {
			t.Fatalf("first bid: %v", err)
		}
		if _, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(900)); err != ErrBidExists {
			t.Fatalf("expected ErrBidExists, got %v", err)
		}
	})
}

func TestBidAboveListingPriceAllowed(t *testing.T) {
	f := newListedFixture(t, 1000, 5000)

	if _, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(2500)); err != nil {
		t.Fatalf("bid above listing price: %v", err)
	}
}

func TestModifyBidRaiseAndLower(t *testing.T) {
	f := newListedFixture(t, 1000, 5000)
	bid, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(800))
	if err != nil {
		t.Fatalf("bid: %v", err)
	}

	raised, err := f.engine.ModifyBid(f.listing.ID, f.bidder, big.NewInt(1200))
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if raised.Price.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("raised price = %v, want 1200", raised.Price)
	}
	if got := f.state.balance(f.bidder); got.Cmp(big.NewInt(3800)) != 0 {
		t.Fatalf("bidder balance after raise = %v, want 3800", got)
	}
	if got := f.vaultBalance(t, bid.ID); got.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("vault after raise = %v, want 1200", got)
	}

	lowered, err := f.engine.ModifyBid(f.listing.ID, f.bidder, big.NewInt(500))
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if lowered.Price.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("lowered price = %v, want 500", lowered.Price)
	}
	if got := f.state.balance(f.bidder); got.Cmp(big.NewInt(4500)) != 0 {
		t.Fatalf("bidder balance after lower = %v, want 4500", got)
	}
	if got := f.vaultBalance(t, bid.ID); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("vault after lower = %v, want 500", got)
	}
}

func TestModifyBidValidations(t *testing.T) {
	f := newListedFixture(t, 1000, 5000)
	if _, err := f.engine.ModifyBid(f.listing.ID, f.bidder, big.NewInt(700)); err != ErrBidNotFound {
		t.Fatalf("expected ErrBidNotFound, got %v", err)
	}
	if _, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(800)); err != nil {
		t.Fatalf("bid: %v", err)
	}

	cases := []struct {
		name   string
		amount *big.Int
	}{
		{"nil amount", nil},
		{"zero amount", big.NewInt(0)},
		{"negative amount", big.NewInt(-5)},
		{"unchanged amount", big.NewInt(800)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.engine.ModifyBid(f.listing.ID, f.bidder, tc.amount); err != ErrInvalidAmount {
				t.Fatalf("expected ErrInvalidAmount, got %v", err)
			}
		})
	}

	t.Run("raise beyond balance leaves bid untouched", func(t *testing.T) {
		if _, err := f.engine.ModifyBid(f.listing.ID, f.bidder, big.NewInt(99_999)); err != ErrInsufficientFunds {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		bid, ok := f.state.BidGet(BidID(f.listing.ID, f.bidder))
		if !ok {
			t.Fatalf("bid missing")
		}
		if bid.Price.Cmp(big.NewInt(800)) != 0 {
			t.Fatalf("bid price mutated to %v", bid.Price)
		}
	})
}

func TestCancelBidRefundsVault(t *testing.T) {
	f := newListedFixture(t, 1000, 5000)
	bid, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(800))
	if err != nil {
		t.Fatalf("bid: %v", err)
	}

	if err := f.engine.CancelBid(f.listing.ID, newTestAddress(0x09)); err != ErrBidNotFound {
		t.Fatalf("expected ErrBidNotFound for stranger, got %v", err)
	}
	if err := f.engine.CancelBid(f.listing.ID, f.bidder); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.state.balance(f.bidder); got.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("bidder balance after cancel = %v, want 5000", got)
	}
	if got := f.vaultBalance(t, bid.ID); got.Sign() != 0 {
		t.Fatalf("vault not emptied: %v", got)
	}
	if _, ok := f.state.BidGet(bid.ID); ok {
		t.Fatalf("bid record still present")
	}
	if err := f.engine.CancelBid(f.listing.ID, f.bidder); err != ErrBidNotFound {
		t.Fatalf("expected ErrBidNotFound on second cancel, got %v", err)
	}
}

func TestAcceptBidSettlesListing(t *testing.T) {
	f := newListedFixture(t, 1000, 5000)
	bid, err := f.engine.Bid(f.listing.ID, f.bidder, big.NewInt(1400))
	if err != nil {
		t.Fatalf("bid: %v", err)
	}

	if err := f.engine.AcceptBid(f.listing.ID, f.bidder, f.bidder); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for non-lister, got %v", err)
	}
	if err := f.engine.AcceptBid(f.listing.ID, f.lister, newTestAddress(0x09)); err != ErrBidNotFound {
		t.Fatalf("expected ErrBidNotFound for unknown bidder, got %v", err)
	}
	if err := f.engine.AcceptBid(f.listing.ID, f.lister, f.bidder); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// The full escrow goes to the lister; no fee or royalty split applies on
	// this path.
	if got := f.state.balance(f.lister); got.Cmp(big.NewInt(1400)) != 0 {
		t.Fatalf("lister balance = %v, want 1400", got)
	}
	if got := f.vaultBalance(t, bid.ID); got.Sign() != 0 {
		t.Fatalf("vault not emptied: %v", got)
	}
	if _, ok := f.state.BidGet(bid.ID); ok {
		t.Fatalf("bid record still present")
	}
	if _, ok := f.state.ListingGet(f.listing.ID); ok {
		t.Fatalf("listing record still present")
	}
	holding, ok := f.state.HoldingGet(f.asset, f.bidder)
	if !ok {
		t.Fatalf("bidder holding missing")
	}
	if holding.Amount != 1 || holding.Locked || holding.Delegated() {
		t.Fatalf("unexpected bidder holding: %+v", holding)
	}
	if _, ok := f.state.HoldingGet(f.asset, f.lister); ok {
		t.Fatalf("lister holding should be removed once empty")
	}
	if len(f.emitter.types) == 0 || f.emitter.types[len(f.emitter.types)-1] != EventTypeBidAccepted {
		t.Fatalf("expected bid accepted event, got %v", f.emitter.types)
	}
}
