package whitelist

import "errors"

var (
	// ErrNotAuthorized marks mutating calls from an identity other than the
	// stored admin.
	ErrNotAuthorized = errors.New("whitelist: not authorized")
	// ErrAdminNotFound is returned when an admin-gated call arrives before the
	// registry has been initialised.
	ErrAdminNotFound = errors.New("whitelist: admin not found")
	// ErrAlreadyInitialized is returned when Initialize runs against a registry
	// that already has an admin.
	ErrAlreadyInitialized = errors.New("whitelist: already initialized")
	// ErrAddressNotWhitelisted marks removals or targeted lookups on an address
	// with no stored record.
	ErrAddressNotWhitelisted = errors.New("whitelist: address not whitelisted")
	// ErrInvalidTier rejects tier zero; tiers start at one.
	ErrInvalidTier = errors.New("whitelist: invalid tier")
	// ErrExpiredEntry surfaces expiration explicitly on check paths that need
	// to distinguish "never added" from "lapsed".
	ErrExpiredEntry = errors.New("whitelist: entry expired")
	// ErrInvalidMerkleProof marks proof verification attempted without a
	// committed root or with a malformed proof.
	ErrInvalidMerkleProof = errors.New("whitelist: invalid merkle proof")
	// ErrEntryAlreadyExists marks adds targeting an address that already holds
	// a live entry. Updates must go through the explicit update path.
	ErrEntryAlreadyExists = errors.New("whitelist: entry already exists")
	// ErrInvalidPermission rejects permission tokens outside the recognised
	// grammar.
	ErrInvalidPermission = errors.New("whitelist: invalid permission")
	// ErrSnapshotMismatch is returned by strict snapshot creation when the
	// attested root or entry count disagrees with registry state.
	ErrSnapshotMismatch = errors.New("whitelist: snapshot mismatch")
)
