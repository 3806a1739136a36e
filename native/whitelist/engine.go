package whitelist

import (
	"time"

	"tiergate/core/events"
)

// Engine composes the ledger, tier policy and merkle verification into the
// operation surface external callers use. Admin gating happens here: every
// mutating call names its caller and the engine compares it against the
// stored admin. Transport-level authentication of that caller identity is the
// host's responsibility.
type Engine struct {
	ledger  *Ledger
	emitter events.Emitter
	nowFn   func() uint64

	// merkleFallback lets IsWhitelistedWithProof accept proof-based
	// membership when the entry store misses. Deployment policy, off by
	// default.
	merkleFallback bool
	// strictSnapshots makes CreateSnapshot cross-check the attested root and
	// entry count against registry state.
	strictSnapshots bool
}

// NewEngine constructs an engine backed by the provided storage backend.
func NewEngine(store storage) *Engine {
	return &Engine{
		ledger:  NewLedger(store),
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetNowFunc overrides the clock used for expiration checks. The registry
// treats clock values as opaque heights; deployments may wire block numbers
// or unix seconds. Passing nil restores the default wall clock.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMerkleFallback toggles proof-based fallback for whitelist checks that
// carry a proof. Enabling it must be documented in the deployment config.
func (e *Engine) SetMerkleFallback(enabled bool) { e.merkleFallback = enabled }

// SetStrictSnapshots toggles consistency checking in CreateSnapshot.
func (e *Engine) SetStrictSnapshots(enabled bool) { e.strictSnapshots = enabled }

func (e *Engine) emit(event events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	admin, ok, err := e.ledger.Admin()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdminNotFound
	}
	if admin != caller {
		return ErrNotAuthorized
	}
	return nil
}

// Initialize establishes the admin identity. It can only succeed once.
func (e *Engine) Initialize(admin [20]byte) error {
	if _, ok, err := e.ledger.Admin(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if err := e.ledger.SetAdmin(admin); err != nil {
		return err
	}
	e.emit(adminTransferredEvent{current: admin, initial: true})
	return nil
}

// GetAdmin returns the current admin, if set.
func (e *Engine) GetAdmin() ([20]byte, bool, error) {
	return e.ledger.Admin()
}

// TransferAdmin hands the admin role to a new identity. Only the current
// admin may call it.
func (e *Engine) TransferAdmin(caller, newAdmin [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.ledger.SetAdmin(newAdmin); err != nil {
		return err
	}
	e.emit(adminTransferredEvent{previous: caller, current: newAdmin})
	return nil
}

// AddToWhitelist inserts a new record. Adding over a live record is a
// conflict; a lapsed record may be overwritten, which doubles as pruning.
func (e *Engine) AddToWhitelist(caller [20]byte, entry *WhitelistEntry) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	clean, err := entry.sanitize()
	if err != nil {
		return err
	}
	existing, ok, err := e.ledger.EntryGet(clean.Address)
	if err != nil {
		return err
	}
	if ok && !existing.Expired(e.now()) {
		return ErrEntryAlreadyExists
	}
	if err := e.ledger.EntryPut(clean); err != nil {
		return err
	}
	e.emit(entryEvent{eventType: EventTypeEntryAdded, entry: clean})
	return nil
}

// UpdateWhitelistEntry replaces an existing record. The record may be lapsed;
// what matters is that the address was explicitly added before. This is the
// only sanctioned way to change an address in place.
func (e *Engine) UpdateWhitelistEntry(caller [20]byte, entry *WhitelistEntry) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	clean, err := entry.sanitize()
	if err != nil {
		return err
	}
	if _, ok, err := e.ledger.EntryGet(clean.Address); err != nil {
		return err
	} else if !ok {
		return ErrAddressNotWhitelisted
	}
	if err := e.ledger.EntryPut(clean); err != nil {
		return err
	}
	e.emit(entryEvent{eventType: EventTypeEntryUpdated, entry: clean})
	return nil
}

// RemoveFromWhitelist deletes the record for the address. Lapsed records are
// removable too so operators can prune them.
func (e *Engine) RemoveFromWhitelist(caller, address [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	existed, err := e.ledger.EntryDelete(address)
	if err != nil {
		return err
	}
	if !existed {
		return ErrAddressNotWhitelisted
	}
	e.emit(entryRemovedEvent{address: address})
	return nil
}

// BatchAddToWhitelist applies AddToWhitelist semantics to each entry in input
// order, all-or-nothing: the whole batch is validated against current state
// (and against itself) before anything is written. An empty batch succeeds
// with zero effect.
func (e *Engine) BatchAddToWhitelist(caller [20]byte, entries []*WhitelistEntry) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	now := e.now()
	staged := make([]*WhitelistEntry, 0, len(entries))
	seen := make(map[[20]byte]struct{}, len(entries))
	for _, entry := range entries {
		clean, err := entry.sanitize()
		if err != nil {
			return err
		}
		if _, dup := seen[clean.Address]; dup {
			return ErrEntryAlreadyExists
		}
		existing, ok, err := e.ledger.EntryGet(clean.Address)
		if err != nil {
			return err
		}
		if ok && !existing.Expired(now) {
			return ErrEntryAlreadyExists
		}
		seen[clean.Address] = struct{}{}
		staged = append(staged, clean)
	}
	for _, clean := range staged {
		if err := e.ledger.EntryPut(clean); err != nil {
			return err
		}
		e.emit(entryEvent{eventType: EventTypeEntryAdded, entry: clean})
	}
	return nil
}

// BatchRemoveFromWhitelist removes each address in input order,
// all-or-nothing: every address must have a stored record (live or lapsed)
// and no address may appear twice, otherwise nothing is removed.
func (e *Engine) BatchRemoveFromWhitelist(caller [20]byte, addresses [][20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	seen := make(map[[20]byte]struct{}, len(addresses))
	for _, address := range addresses {
		if _, dup := seen[address]; dup {
			return ErrAddressNotWhitelisted
		}
		if _, ok, err := e.ledger.EntryGet(address); err != nil {
			return err
		} else if !ok {
			return ErrAddressNotWhitelisted
		}
		seen[address] = struct{}{}
	}
	for _, address := range addresses {
		if _, err := e.ledger.EntryDelete(address); err != nil {
			return err
		}
		e.emit(entryRemovedEvent{address: address})
	}
	return nil
}

// IsWhitelisted reports whether the address holds a live record satisfying
// the required tier. A zero requirement means any tier. Only the entry store
// is consulted; see IsWhitelistedWithProof for proof-based fallback.
func (e *Engine) IsWhitelisted(address [20]byte, requiredTier uint32) (bool, error) {
	entry, ok, err := e.ledger.EntryGet(address)
	if err != nil {
		return false, err
	}
	if !ok || entry.Expired(e.now()) {
		return false, nil
	}
	return TierSatisfies(entry.Tier, requiredTier), nil
}

// RequireWhitelisted is the error-surfacing variant of IsWhitelisted for
// callers that need to distinguish absent, lapsed and under-tiered records.
func (e *Engine) RequireWhitelisted(address [20]byte, requiredTier uint32) error {
	entry, ok, err := e.ledger.EntryGet(address)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAddressNotWhitelisted
	}
	if entry.Expired(e.now()) {
		return ErrExpiredEntry
	}
	if !TierSatisfies(entry.Tier, requiredTier) {
		return ErrNotAuthorized
	}
	return nil
}

// IsWhitelistedWithProof behaves like IsWhitelisted but, when the entry store
// misses and merkle fallback is enabled for this deployment, accepts a proof
// for exactly the required tier instead. Proofs are tier-specific, so a zero
// tier requirement cannot be satisfied by proof.
func (e *Engine) IsWhitelistedWithProof(address [20]byte, requiredTier uint32, proof [][32]byte) (bool, error) {
	ok, err := e.IsWhitelisted(address, requiredTier)
	if err != nil || ok {
		return ok, err
	}
	if !e.merkleFallback || requiredTier == 0 || len(proof) == 0 {
		return false, nil
	}
	verified, err := e.VerifyMerkleProof(address, requiredTier, proof)
	if err != nil {
		return false, err
	}
	return verified, nil
}

// HasPermission reports whether the address holds a live record granting the
// permission either directly or through its tier. Absent or lapsed records
// and unrecognisable tokens yield false, never an error.
func (e *Engine) HasPermission(address [20]byte, permission string) (bool, error) {
	normalized, err := NormalizePermission(permission)
	if err != nil {
		return false, nil
	}
	entry, ok, err := e.ledger.EntryGet(address)
	if err != nil {
		return false, err
	}
	if !ok || entry.Expired(e.now()) {
		return false, nil
	}
	tierPerms, err := e.ledger.TierPermissions(entry.Tier)
	if err != nil {
		return false, err
	}
	return ResolvePermission(entry, tierPerms, normalized), nil
}

// GetWhitelistEntry returns the live record for the address. Lapsed records
// are not surfaced here; GetStoredEntry exposes the raw audit view.
func (e *Engine) GetWhitelistEntry(address [20]byte) (*WhitelistEntry, bool, error) {
	entry, ok, err := e.ledger.EntryGet(address)
	if err != nil || !ok {
		return nil, false, err
	}
	if entry.Expired(e.now()) {
		return nil, false, nil
	}
	return entry, true, nil
}

// GetStoredEntry returns the raw stored record regardless of expiration,
// together with a flag reporting whether it is still live. Lapsed records
// remain visible here until explicitly removed or overwritten.
func (e *Engine) GetStoredEntry(address [20]byte) (*WhitelistEntry, bool, bool, error) {
	entry, ok, err := e.ledger.EntryGet(address)
	if err != nil || !ok {
		return nil, false, false, err
	}
	return entry, true, !entry.Expired(e.now()), nil
}

// EntryCount returns the number of stored records, including lapsed ones.
func (e *Engine) EntryCount() (uint64, error) {
	return e.ledger.EntryCount()
}

// SetTierPermissions declares the tier-wide permission list for a tier.
func (e *Engine) SetTierPermissions(caller [20]byte, tier uint32, permissions []string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if tier == 0 {
		return ErrInvalidTier
	}
	normalized, err := NormalizePermissions(permissions)
	if err != nil {
		return err
	}
	if err := e.ledger.SetTierPermissions(tier, normalized); err != nil {
		return err
	}
	e.emit(tierPermissionsEvent{tier: tier, perms: normalized})
	return nil
}

// GetTierPermissions returns the tier-wide permission list for a tier.
func (e *Engine) GetTierPermissions(tier uint32) ([]string, error) {
	return e.ledger.TierPermissions(tier)
}

// SetMerkleRoot replaces the committed membership root unconditionally. The
// off-chain builder must regenerate the full tree for every root change.
func (e *Engine) SetMerkleRoot(caller [20]byte, root [32]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.ledger.SetMerkleRoot(root); err != nil {
		return err
	}
	e.emit(merkleRootEvent{root: root})
	return nil
}

// MerkleRoot returns the committed membership root, if set.
func (e *Engine) MerkleRoot() ([32]byte, bool, error) {
	return e.ledger.MerkleRoot()
}

// VerifyMerkleProof checks a membership claim for exactly (address, tier)
// against the committed root. It fails when no root is set; otherwise it
// reports proof validity as a boolean. An empty proof is valid only when the
// leaf itself equals the root.
func (e *Engine) VerifyMerkleProof(address [20]byte, tier uint32, proof [][32]byte) (bool, error) {
	if tier == 0 {
		return false, ErrInvalidTier
	}
	root, ok, err := e.ledger.MerkleRoot()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrInvalidMerkleProof
	}
	return FoldProof(LeafHash(address, tier), proof) == root, nil
}

// CreateSnapshot records an attestation of registry state at the current
// clock value. In the baseline contract root and count are asserted by the
// admin; in strict mode they are cross-checked against the committed root and
// the stored record count.
func (e *Engine) CreateSnapshot(caller [20]byte, root [32]byte, totalEntries uint64) (*WhitelistSnapshot, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if e.strictSnapshots {
		committed, ok, err := e.ledger.MerkleRoot()
		if err != nil {
			return nil, err
		}
		if !ok || committed != root {
			return nil, ErrSnapshotMismatch
		}
		count, err := e.ledger.EntryCount()
		if err != nil {
			return nil, err
		}
		if count != totalEntries {
			return nil, ErrSnapshotMismatch
		}
	}
	snapshot := &WhitelistSnapshot{
		BlockNumber:  e.now(),
		MerkleRoot:   root,
		TotalEntries: totalEntries,
	}
	if err := e.ledger.SetSnapshot(snapshot); err != nil {
		return nil, err
	}
	e.emit(snapshotEvent{snapshot: snapshot})
	return snapshot, nil
}

// GetSnapshot returns the latest attestation, if one exists.
func (e *Engine) GetSnapshot() (*WhitelistSnapshot, bool, error) {
	return e.ledger.Snapshot()
}
