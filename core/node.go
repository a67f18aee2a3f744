package core

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"nftmarket/config"
	"nftmarket/core/events"
	nmstate "nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/native/assets"
	"nftmarket/native/marketplace"
	"nftmarket/observability"
	"nftmarket/storage"
)

// Node is the execution environment for the marketplace protocol. It owns the
// database, the state manager, the asset ledger and the engine, and it is the
// component that provides the guarantees the engine assumes: requests are
// serialized by a mutex, and each request runs inside a state snapshot that is
// reverted on failure, so callers only ever observe a fully applied request or
// untouched prior state.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	state   *nmstate.Manager
	ledger  *assets.Ledger
	market  *marketplace.Engine
	metrics *observability.MarketplaceMetrics
	logger  *slog.Logger
}

// NewNode wires a node from its configuration. An in-memory database is used
// when the config requests one; otherwise LevelDB opens under DataDir.
func NewNode(cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var db storage.Database
	if cfg.InMemory {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		db = ldb
	}
	manager := nmstate.NewManager(db)
	ledger := assets.NewLedger()
	ledger.SetState(manager)
	engine, err := marketplace.NewEngine()
	if err != nil {
		db.Close()
		return nil, err
	}
	engine.SetState(manager)
	engine.SetLedger(ledger)
	engine.SetPauses(cfg)
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		db:      db,
		state:   manager,
		ledger:  ledger,
		market:  engine,
		metrics: observability.Marketplace(),
		logger:  logger,
	}, nil
}

// SetEmitter forwards marketplace events to the provided emitter.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.market.SetEmitter(emitter)
}

// Close releases the backing database.
func (n *Node) Close() {
	n.db.Close()
}

// run executes one request as an indivisible unit: serialized, snapshotted,
// reverted as a whole on any failure, committed to storage on success.
func (n *Node) run(op string, fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := time.Now()
	snap := n.state.Snapshot()
	err := fn()
	if err != nil {
		n.state.RevertToSnapshot(snap)
	} else if commitErr := n.state.Commit(); commitErr != nil {
		err = commitErr
	}
	n.metrics.Observe(op, err, time.Since(start))
	if err != nil {
		n.logger.Error("marketplace request rejected", "op", op, "error", err)
	} else {
		n.logger.Info("marketplace request applied", "op", op)
	}
	return err
}

// InitializeMarketplace creates a marketplace owned by the admin.
func (n *Node) InitializeMarketplace(admin [20]byte, name string, feeBps uint16) (*marketplace.Marketplace, error) {
	var created *marketplace.Marketplace
	err := n.run("initialize_marketplace", func() error {
		m, err := n.market.InitializeMarketplace(admin, name, feeBps)
		created = m
		return err
	})
	return created, err
}

// List creates a listing and places the asset into locked custody.
func (n *Node) List(marketplaceID [32]byte, lister [20]byte, asset, collection assets.AssetID, price *big.Int) (*marketplace.Listing, error) {
	var listed *marketplace.Listing
	err := n.run("list", func() error {
		l, err := n.market.List(marketplaceID, lister, asset, collection, price)
		listed = l
		return err
	})
	return listed, err
}

// Delist withdraws a listing and releases custody back to the lister.
func (n *Node) Delist(listingID [32]byte, caller [20]byte) error {
	return n.run("delist", func() error {
		return n.market.Delist(listingID, caller)
	})
}

// Buy settles a direct purchase, verifying any co-submitted royalty
// operations.
func (n *Node) Buy(listingID [32]byte, buyer [20]byte, coSubmitted []marketplace.SettlementOp) error {
	return n.run("buy", func() error {
		return n.market.Buy(listingID, buyer, coSubmitted)
	})
}

// Bid escrows a new offer on a listing.
func (n *Node) Bid(listingID [32]byte, bidder [20]byte, amount *big.Int) (*marketplace.BidState, error) {
	var placed *marketplace.BidState
	err := n.run("bid", func() error {
		b, err := n.market.Bid(listingID, bidder, amount)
		placed = b
		return err
	})
	return placed, err
}

// ModifyBid adjusts a standing bid's escrow and price.
func (n *Node) ModifyBid(listingID [32]byte, bidder [20]byte, amount *big.Int) (*marketplace.BidState, error) {
	var modified *marketplace.BidState
	err := n.run("modify_bid", func() error {
		b, err := n.market.ModifyBid(listingID, bidder, amount)
		modified = b
		return err
	})
	return modified, err
}

// CancelBid refunds a bid's escrow and closes it.
func (n *Node) CancelBid(listingID [32]byte, bidder [20]byte) error {
	return n.run("cancel_bid", func() error {
		return n.market.CancelBid(listingID, bidder)
	})
}

// AcceptBid settles a listing against one standing bid.
func (n *Node) AcceptBid(listingID [32]byte, caller, bidder [20]byte) error {
	return n.run("accept_bid", func() error {
		return n.market.AcceptBid(listingID, caller, bidder)
	})
}

// --- Genesis / external-collaborator seeding ---

// SetBalance assigns a native balance to the address. Account allocation is a
// host concern, outside the escrow protocol.
func (n *Node) SetBalance(addr [20]byte, amount *big.Int) error {
	return n.run("set_balance", func() error {
		account, err := n.state.GetAccount(addr)
		if err != nil {
			return err
		}
		account.Balance = new(big.Int).Set(amount)
		return n.state.PutAccount(addr, account)
	})
}

// SeedHolding registers an asset holding, standing in for the external mint
// and allocation machinery.
func (n *Node) SeedHolding(holding *assets.Holding) error {
	return n.run("seed_holding", func() error {
		return n.state.HoldingPut(holding)
	})
}

// SeedMetadata registers an asset's registry record.
func (n *Node) SeedMetadata(meta *assets.Metadata) error {
	return n.run("seed_metadata", func() error {
		return n.state.MetadataPut(meta)
	})
}

// --- Read-only queries ---

// BalanceOf returns the native balance of the address.
func (n *Node) BalanceOf(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return cloneAccountBalance(account), nil
}

// Marketplace returns the marketplace record, if present.
func (n *Node) Marketplace(id [32]byte) (*marketplace.Marketplace, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.MarketplaceGet(id)
}

// Listing returns the listing record, if present.
func (n *Node) Listing(id [32]byte) (*marketplace.Listing, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.ListingGet(id)
}

// BidState returns the bid record for (listing, bidder), if present.
func (n *Node) BidState(listingID [32]byte, bidder [20]byte) (*marketplace.BidState, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.BidGet(marketplace.BidID(listingID, bidder))
}

// VaultBalance returns the escrow held for the bid.
func (n *Node) VaultBalance(listingID [32]byte, bidder [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.VaultBalance(marketplace.BidID(listingID, bidder))
}

// Holding returns the holding record for (asset, holder), if present.
func (n *Node) Holding(asset assets.AssetID, holder [20]byte) (*assets.Holding, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.HoldingGet(asset, holder)
}

func cloneAccountBalance(account *types.Account) *big.Int {
	if account == nil || account.Balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(account.Balance)
}
