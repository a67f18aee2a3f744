package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/core/types"
	"nftmarket/native/assets"
	"nftmarket/native/marketplace"
	"nftmarket/storage"
)

// Manager reads and writes marketplace state over a key-value database. Writes
// land in an in-memory overlay journaled for snapshot/revert; Commit flushes
// the overlay to the backing store. The host wraps every request in a
// snapshot so a failed request leaves no partial mutation behind.
//
// Manager is not safe for concurrent use; the execution environment serializes
// requests.
type Manager struct {
	db      storage.Database
	overlay map[string]overlayValue
	journal []journalEntry
}

type overlayValue struct {
	data    []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    overlayValue
	existed bool
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		overlay: make(map[string]overlayValue),
	}
}

func hashKey(prefix []byte, material ...[]byte) string {
	parts := make([][]byte, 0, len(material)+1)
	parts = append(parts, prefix)
	parts = append(parts, material...)
	return string(ethcrypto.Keccak256(parts...))
}

func (m *Manager) rawGet(key string) ([]byte, bool, error) {
	if slot, ok := m.overlay[key]; ok {
		if slot.deleted {
			return nil, false, nil
		}
		return slot.data, true, nil
	}
	data, err := m.db.Get([]byte(key))
	if err == storage.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) record(key string) {
	prev, existed := m.overlay[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, existed: existed})
}

func (m *Manager) rawPut(key string, data []byte) {
	m.record(key)
	m.overlay[key] = overlayValue{data: append([]byte(nil), data...)}
}

func (m *Manager) rawDelete(key string) {
	m.record(key)
	m.overlay[key] = overlayValue{deleted: true}
}

// Snapshot marks the current journal position. The identifier stays valid
// until a revert past it or a commit.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot rolls the overlay back to the given journal position,
// discarding everything written since.
func (m *Manager) RevertToSnapshot(snap int) {
	if snap < 0 || snap > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= snap; i-- {
		entry := m.journal[i]
		if entry.existed {
			m.overlay[entry.key] = entry.prev
		} else {
			delete(m.overlay, entry.key)
		}
	}
	m.journal = m.journal[:snap]
}

// Commit flushes the overlay to the backing database and clears the journal.
func (m *Manager) Commit() error {
	for key, slot := range m.overlay {
		if slot.deleted {
			if err := m.db.Delete([]byte(key)); err != nil {
				return err
			}
			continue
		}
		if err := m.db.Put([]byte(key), slot.data); err != nil {
			return err
		}
	}
	m.overlay = make(map[string]overlayValue)
	m.journal = m.journal[:0]
	return nil
}

func (m *Manager) putRLP(key string, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.rawPut(key, encoded)
	return nil
}

func (m *Manager) getRLP(key string, out interface{}) (bool, error) {
	data, ok, err := m.rawGet(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// --- Accounts ---

// GetAccount loads the account for the address, returning a zero-balance
// account when none is stored.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.getRLP(hashKey(accountPrefix, addr[:]), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

// PutAccount stores the account under the address.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	clone := account.Clone()
	if clone.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance not allowed")
	}
	return m.putRLP(hashKey(accountPrefix, addr[:]), clone)
}

// --- Marketplace records ---

// MarketplacePut stores a sanitized marketplace record.
func (m *Manager) MarketplacePut(mp *marketplace.Marketplace) error {
	sanitized, err := marketplace.SanitizeMarketplace(mp)
	if err != nil {
		return err
	}
	return m.putRLP(hashKey(marketplacePrefix, sanitized.ID[:]), sanitized)
}

// MarketplaceGet loads a marketplace record by identifier.
func (m *Manager) MarketplaceGet(id [32]byte) (*marketplace.Marketplace, bool) {
	record := new(marketplace.Marketplace)
	ok, err := m.getRLP(hashKey(marketplacePrefix, id[:]), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

// ListingPut stores a sanitized listing record.
func (m *Manager) ListingPut(l *marketplace.Listing) error {
	sanitized, err := marketplace.SanitizeListing(l)
	if err != nil {
		return err
	}
	return m.putRLP(hashKey(listingPrefix, sanitized.ID[:]), sanitized)
}

// ListingGet loads a listing record by identifier.
func (m *Manager) ListingGet(id [32]byte) (*marketplace.Listing, bool) {
	record := new(marketplace.Listing)
	ok, err := m.getRLP(hashKey(listingPrefix, id[:]), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

// ListingDelete closes a listing record.
func (m *Manager) ListingDelete(id [32]byte) error {
	m.rawDelete(hashKey(listingPrefix, id[:]))
	return nil
}

// BidPut stores a sanitized bid record.
func (m *Manager) BidPut(b *marketplace.BidState) error {
	sanitized, err := marketplace.SanitizeBid(b)
	if err != nil {
		return err
	}
	return m.putRLP(hashKey(bidPrefix, sanitized.ID[:]), sanitized)
}

// BidGet loads a bid record by identifier.
func (m *Manager) BidGet(id [32]byte) (*marketplace.BidState, bool) {
	record := new(marketplace.BidState)
	ok, err := m.getRLP(hashKey(bidPrefix, id[:]), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

// BidDelete closes a bid record.
func (m *Manager) BidDelete(id [32]byte) error {
	m.rawDelete(hashKey(bidPrefix, id[:]))
	return nil
}

// --- Vault escrow ledger ---

// VaultCredit adds to the escrow ledger of the owning entity.
func (m *Manager) VaultCredit(id [32]byte, amt *big.Int) error {
	return m.vaultAdjust(id, amt, false)
}

// VaultDebit removes from the escrow ledger of the owning entity. Debiting
// past zero fails.
func (m *Manager) VaultDebit(id [32]byte, amt *big.Int) error {
	return m.vaultAdjust(id, amt, true)
}

func (m *Manager) vaultAdjust(id [32]byte, amt *big.Int, debit bool) error {
	if amt == nil {
		amt = big.NewInt(0)
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("state: negative vault adjustment")
	}
	if amt.Sign() == 0 {
		return nil
	}
	current, err := m.VaultBalance(id)
	if err != nil {
		return err
	}
	key := hashKey(vaultPrefix, id[:])
	if debit {
		if current.Cmp(amt) < 0 {
			return fmt.Errorf("state: insufficient vault balance")
		}
		current.Sub(current, amt)
		if current.Sign() == 0 {
			m.rawDelete(key)
			return nil
		}
	} else {
		current.Add(current, amt)
	}
	return m.putRLP(key, current)
}

// VaultBalance returns the escrow ledger balance for the owning entity.
func (m *Manager) VaultBalance(id [32]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.getRLP(hashKey(vaultPrefix, id[:]), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// --- Asset holdings and metadata ---

// HoldingGet loads the holding for (asset, holder).
func (m *Manager) HoldingGet(asset assets.AssetID, holder [20]byte) (*assets.Holding, bool) {
	record := new(assets.Holding)
	ok, err := m.getRLP(hashKey(holdingPrefix, asset[:], holder[:]), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

// HoldingPut stores the holding keyed by its asset and holder.
func (m *Manager) HoldingPut(h *assets.Holding) error {
	if h == nil {
		return fmt.Errorf("state: nil holding")
	}
	return m.putRLP(hashKey(holdingPrefix, h.Asset[:], h.Holder[:]), h.Clone())
}

// HoldingDelete removes an emptied holding.
func (m *Manager) HoldingDelete(asset assets.AssetID, holder [20]byte) error {
	m.rawDelete(hashKey(holdingPrefix, asset[:], holder[:]))
	return nil
}

// MetadataGet loads the registry record for the asset.
func (m *Manager) MetadataGet(asset assets.AssetID) (*assets.Metadata, bool) {
	record := new(assets.Metadata)
	ok, err := m.getRLP(hashKey(assetMetaPrefix, asset[:]), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

// MetadataPut stores a sanitized registry record. The registry is read-only
// for the marketplace protocol; this write path exists for genesis seeding
// and tests.
func (m *Manager) MetadataPut(meta *assets.Metadata) error {
	sanitized, err := assets.SanitizeMetadata(meta)
	if err != nil {
		return err
	}
	return m.putRLP(hashKey(assetMetaPrefix, sanitized.Asset[:]), sanitized)
}
