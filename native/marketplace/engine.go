package marketplace

import (
	"fmt"
	"math/big"
	"time"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/assets"
	nativecommon "nftmarket/native/common"
)

const moduleName = "marketplace"

// Derivation domain tags. Record identifiers and capability addresses are
// computed from these tags plus the parent identity, matching the lookup keys
// stored in state.
const (
	tagMarketplace      = "marketplace"
	tagListing          = "listing"
	tagBid              = "bid"
	tagBidVault         = "bid_vault"
	tagFeeVault         = "fee_vault"
	tagListingAuthority = "listing_authority"
)

type engineState interface {
	MarketplacePut(*Marketplace) error
	MarketplaceGet(id [32]byte) (*Marketplace, bool)
	ListingPut(*Listing) error
	ListingGet(id [32]byte) (*Listing, bool)
	ListingDelete(id [32]byte) error
	BidPut(*BidState) error
	BidGet(id [32]byte) (*BidState, bool)
	BidDelete(id [32]byte) error
	VaultCredit(id [32]byte, amt *big.Int) error
	VaultDebit(id [32]byte, amt *big.Int) error
	VaultBalance(id [32]byte) (*big.Int, error)
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// AssetLedger is the token-ledger collaborator consumed by the engine. The
// concrete implementation lives in native/assets; tests substitute mocks.
type AssetLedger interface {
	Metadata(asset assets.AssetID) (*assets.Metadata, error)
	Holding(asset assets.AssetID, holder [20]byte) (*assets.Holding, error)
	Delegate(asset assets.AssetID, holder, caller, delegate [20]byte) error
	Revoke(asset assets.AssetID, holder, caller [20]byte) error
	Lock(asset assets.AssetID, holder, caller [20]byte) error
	Unlock(asset assets.AssetID, holder, caller [20]byte) error
	Transfer(asset assets.AssetID, from, to, caller [20]byte) error
}

type marketplaceEvent struct {
	evt *types.Event
}

func (e marketplaceEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketplaceEvent) Event() *types.Event { return e.evt }

// Engine wires the marketplace escrow protocol with external state, the asset
// ledger and event emitters. Each exported operation runs as one unit; the
// host (core.Node) provides the snapshot/rollback boundary so a failed
// operation leaves no partial mutation behind.
type Engine struct {
	state   engineState
	ledger  AssetLedger
	emitter events.Emitter
	deriver *Deriver
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine creates a marketplace engine with a no-op emitter and a fresh
// capability deriver.
func NewEngine() (*Engine, error) {
	deriver, err := NewDeriver()
	if err != nil {
		return nil, err
	}
	return &Engine{
		emitter: events.NoopEmitter{},
		deriver: deriver,
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token-ledger collaborator.
func (e *Engine) SetLedger(ledger AssetLedger) { e.ledger = ledger }

// SetPauses configures the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketplaceEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return uint64(e.nowFn())
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// withAuthority validates the capability proof before the engine acts as the
// derived address. A mismatch is a fatal precondition failure.
func (e *Engine) withAuthority(addr [20]byte, proof Proof) ([20]byte, error) {
	if !e.deriver.Verify(addr, proof) {
		return [20]byte{}, ErrInvalidAuthority
	}
	return addr, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// transferValue moves native value between accounts. A zero amount is a no-op;
// a negative amount or an overdraft aborts.
func (e *Engine) transferValue(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("marketplace: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) loadMarketplace(id [32]byte) (*Marketplace, error) {
	m, ok := e.state.MarketplaceGet(id)
	if !ok {
		return nil, ErrMarketplaceNotFound
	}
	return m, nil
}

func (e *Engine) loadListing(id [32]byte) (*Listing, error) {
	l, ok := e.state.ListingGet(id)
	if !ok {
		return nil, ErrListingNotFound
	}
	return l, nil
}

func (e *Engine) loadBid(id [32]byte) (*BidState, error) {
	b, ok := e.state.BidGet(id)
	if !ok {
		return nil, ErrBidNotFound
	}
	return b, nil
}

// MarketplaceID computes the deterministic identifier for a marketplace with
// the given name and admin.
func MarketplaceID(name string, admin [20]byte) ([32]byte, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return [32]byte{}, err
	}
	return DeriveID(tagMarketplace, []byte(normalized), admin[:]), nil
}

// ListingID computes the identifier of the marketplace's listing slot.
func ListingID(marketplaceID [32]byte) [32]byte {
	return DeriveID(tagListing, marketplaceID[:])
}

// BidID computes the identifier of a bidder's bid on the given listing.
func BidID(listingID [32]byte, bidder [20]byte) [32]byte {
	return DeriveID(tagBid, listingID[:], bidder[:])
}

// FeeVaultAddress returns the account accumulating the marketplace's platform
// fees.
func FeeVaultAddress(marketplaceID [32]byte) [20]byte {
	id := DeriveID(tagFeeVault, marketplaceID[:])
	var addr [20]byte
	copy(addr[:], id[12:])
	return addr
}

// InitializeMarketplace creates the root marketplace record. The fee rate is
// fixed at creation and the record is never mutated afterwards. A second
// initialisation with the same name and admin fails.
func (e *Engine) InitializeMarketplace(admin [20]byte, name string, feeBps uint16) (*Marketplace, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	normalized, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if feeBps > 10_000 {
		return nil, fmt.Errorf("marketplace: fee bps out of range: %d", feeBps)
	}
	id := DeriveID(tagMarketplace, []byte(normalized), admin[:])
	if _, ok := e.state.MarketplaceGet(id); ok {
		return nil, ErrMarketplaceExists
	}
	m := &Marketplace{
		ID:        id,
		Admin:     admin,
		FeeBps:    feeBps,
		Name:      normalized,
		CreatedAt: e.now(),
	}
	if err := e.state.MarketplacePut(m); err != nil {
		return nil, err
	}
	e.emit(NewMarketplaceCreatedEvent(m))
	return m.Clone(), nil
}

// List places the asset into escrow and creates the marketplace's listing.
// The asset must be a verified member of the stated collection and carry the
// non-fungible standard; it is then delegated to and locked under the
// listing's capability authority.
func (e *Engine) List(marketplaceID [32]byte, lister [20]byte, asset, collection assets.AssetID, price *big.Int) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.loadMarketplace(marketplaceID); err != nil {
		return nil, err
	}
	listingID := ListingID(marketplaceID)
	if _, ok := e.state.ListingGet(listingID); ok {
		return nil, ErrListingExists
	}
	if price != nil && price.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	meta, err := e.ledger.Metadata(asset)
	if err != nil {
		return nil, err
	}
	if meta.Standard != assets.StandardNonFungible {
		return nil, ErrInvalidTokenStandard
	}
	if !meta.Collection.Verified || meta.Collection.Key != collection {
		return nil, ErrInvalidCollection
	}
	holding, err := e.ledger.Holding(asset, lister)
	if err != nil {
		return nil, err
	}
	if holding.Amount < 1 {
		return nil, assets.ErrInsufficient
	}
	authority, proof := e.deriver.Derive(tagListingAuthority, listingID[:])
	if err := e.ledger.Delegate(asset, lister, lister, authority); err != nil {
		return nil, err
	}
	custodian, err := e.withAuthority(authority, proof)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Lock(asset, lister, custodian); err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:          listingID,
		Marketplace: marketplaceID,
		Lister:      lister,
		Asset:       asset,
		Collection:  collection,
		Price:       cloneBigInt(price),
		CreatedAt:   e.now(),
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(listing))
	return listing.Clone(), nil
}

// Delist unlocks the asset, revokes the listing's delegation and closes the
// listing. Only the lister may delist; there are no payment side effects.
func (e *Engine) Delist(listingID [32]byte, caller [20]byte) error {
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
	if err := e.releaseCustody(listing); err != nil {
		return err
	}
	if err := e.ledger.Revoke(listing.Asset, listing.Lister, listing.Lister); err != nil {
		return err
	}
	if err := e.state.ListingDelete(listingID); err != nil {
		return err
	}
	e.emit(NewDelistedEvent(listing))
	return nil
}

// releaseCustody lifts the lock held by the listing's capability authority.
func (e *Engine) releaseCustody(listing *Listing) error {
	authority, proof := e.deriver.Derive(tagListingAuthority, listing.ID[:])
	custodian, err := e.withAuthority(authority, proof)
	if err != nil {
		return err
	}
	return e.ledger.Unlock(listing.Asset, listing.Lister, custodian)
}

// listingAuthority resolves the capability address acting for the listing.
func (e *Engine) listingAuthority(listing *Listing) ([20]byte, error) {
	authority, proof := e.deriver.Derive(tagListingAuthority, listing.ID[:])
	return e.withAuthority(authority, proof)
}
