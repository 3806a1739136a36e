package whitelist

import (
	"errors"
	"fmt"
)

// storage abstracts the subset of state manager functionality required by the
// whitelist ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	entryPrefix     = []byte("whitelist/entry/")
	tierPermsPrefix = []byte("whitelist/tier-perms/")
	adminKey        = []byte("whitelist/admin")
	merkleRootKey   = []byte("whitelist/merkle-root")
	snapshotKey     = []byte("whitelist/snapshot")
	entryCountKey   = []byte("whitelist/entry-count")
)

func entryKey(address [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", entryPrefix, address))
}

func tierPermsKey(tier uint32) []byte {
	return []byte(fmt.Sprintf("%s%d", tierPermsPrefix, tier))
}

// storedEntry is the persisted form of a whitelist record. The address is the
// map key and is not duplicated in the value.
type storedEntry struct {
	Tier        uint32
	Expiration  uint64
	Permissions []string
}

// storedSnapshot mirrors WhitelistSnapshot for persistence.
type storedSnapshot struct {
	BlockNumber  uint64
	MerkleRoot   [32]byte
	TotalEntries uint64
}

// Ledger persists whitelist records and the registry singletons (admin,
// merkle root, snapshot, entry count). It operates on raw storage: expiration
// filtering is the engine's concern, so removal and overwrite work on lapsed
// records too.
type Ledger struct {
	store storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) guard() error {
	if l == nil || l.store == nil {
		return errors.New("whitelist: storage unavailable")
	}
	return nil
}

// EntryPut stores the record for its address, overwriting any previous value.
// The live-record count is incremented when the address was previously absent.
func (l *Ledger) EntryPut(entry *WhitelistEntry) error {
	if err := l.guard(); err != nil {
		return err
	}
	if entry == nil {
		return errors.New("whitelist: entry required")
	}
	key := entryKey(entry.Address)
	existed, err := l.store.KVGet(key, nil)
	if err != nil {
		return err
	}
	stored := storedEntry{
		Tier:        entry.Tier,
		Expiration:  entry.Expiration,
		Permissions: entry.Permissions,
	}
	if stored.Permissions == nil {
		stored.Permissions = []string{}
	}
	if err := l.store.KVPut(key, &stored); err != nil {
		return err
	}
	if !existed {
		return l.bumpEntryCount(1)
	}
	return nil
}

// EntryGet fetches the raw stored record for the address. Expired records are
// returned as-is; callers apply the expiration predicate.
func (l *Ledger) EntryGet(address [20]byte) (*WhitelistEntry, bool, error) {
	if err := l.guard(); err != nil {
		return nil, false, err
	}
	var stored storedEntry
	ok, err := l.store.KVGet(entryKey(address), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	entry := &WhitelistEntry{
		Address:     address,
		Tier:        stored.Tier,
		Expiration:  stored.Expiration,
		Permissions: stored.Permissions,
	}
	if entry.Permissions == nil {
		entry.Permissions = []string{}
	}
	return entry, true, nil
}

// EntryDelete removes the record for the address regardless of expiration
// status. The boolean reports whether a record existed.
func (l *Ledger) EntryDelete(address [20]byte) (bool, error) {
	if err := l.guard(); err != nil {
		return false, err
	}
	key := entryKey(address)
	existed, err := l.store.KVGet(key, nil)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	if err := l.store.KVDelete(key); err != nil {
		return false, err
	}
	return true, l.bumpEntryCount(-1)
}

// EntryCount returns the number of stored records, including lapsed ones that
// have not been pruned yet.
func (l *Ledger) EntryCount() (uint64, error) {
	if err := l.guard(); err != nil {
		return 0, err
	}
	var count uint64
	if _, err := l.store.KVGet(entryCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (l *Ledger) bumpEntryCount(delta int64) error {
	var count uint64
	if _, err := l.store.KVGet(entryCountKey, &count); err != nil {
		return err
	}
	if delta < 0 {
		if count > 0 {
			count--
		}
	} else {
		count += uint64(delta)
	}
	return l.store.KVPut(entryCountKey, &count)
}

// Admin returns the stored admin address, if set.
func (l *Ledger) Admin() ([20]byte, bool, error) {
	var admin [20]byte
	if err := l.guard(); err != nil {
		return admin, false, err
	}
	ok, err := l.store.KVGet(adminKey, &admin)
	return admin, ok, err
}

// SetAdmin stores the admin address, replacing any prior value.
func (l *Ledger) SetAdmin(admin [20]byte) error {
	if err := l.guard(); err != nil {
		return err
	}
	return l.store.KVPut(adminKey, &admin)
}

// MerkleRoot returns the committed membership root, if set.
func (l *Ledger) MerkleRoot() ([32]byte, bool, error) {
	var root [32]byte
	if err := l.guard(); err != nil {
		return root, false, err
	}
	ok, err := l.store.KVGet(merkleRootKey, &root)
	return root, ok, err
}

// SetMerkleRoot replaces the committed membership root.
func (l *Ledger) SetMerkleRoot(root [32]byte) error {
	if err := l.guard(); err != nil {
		return err
	}
	return l.store.KVPut(merkleRootKey, &root)
}

// Snapshot returns the latest attestation, if one was ever created.
func (l *Ledger) Snapshot() (*WhitelistSnapshot, bool, error) {
	if err := l.guard(); err != nil {
		return nil, false, err
	}
	var stored storedSnapshot
	ok, err := l.store.KVGet(snapshotKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &WhitelistSnapshot{
		BlockNumber:  stored.BlockNumber,
		MerkleRoot:   stored.MerkleRoot,
		TotalEntries: stored.TotalEntries,
	}, true, nil
}

// SetSnapshot overwrites the singleton attestation.
func (l *Ledger) SetSnapshot(snapshot *WhitelistSnapshot) error {
	if err := l.guard(); err != nil {
		return err
	}
	if snapshot == nil {
		return errors.New("whitelist: snapshot required")
	}
	stored := storedSnapshot{
		BlockNumber:  snapshot.BlockNumber,
		MerkleRoot:   snapshot.MerkleRoot,
		TotalEntries: snapshot.TotalEntries,
	}
	return l.store.KVPut(snapshotKey, &stored)
}

// TierPermissions returns the tier-wide permission list for the tier. Unset
// tiers resolve to an empty list.
func (l *Ledger) TierPermissions(tier uint32) ([]string, error) {
	if err := l.guard(); err != nil {
		return nil, err
	}
	var perms []string
	ok, err := l.store.KVGet(tierPermsKey(tier), &perms)
	if err != nil {
		return nil, err
	}
	if !ok || perms == nil {
		return []string{}, nil
	}
	return perms, nil
}

// SetTierPermissions stores the tier-wide permission list, replacing any
// previous declaration for the tier.
func (l *Ledger) SetTierPermissions(tier uint32, perms []string) error {
	if err := l.guard(); err != nil {
		return err
	}
	if perms == nil {
		perms = []string{}
	}
	return l.store.KVPut(tierPermsKey(tier), perms)
}
