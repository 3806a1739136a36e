package whitelist

import (
	"sort"
	"strings"
)

// maxPermissionLen keeps permission tokens short symbol-like identifiers.
const maxPermissionLen = 32

// WhitelistEntry records a single authorised identity: its access tier, an
// optional expiration height and any capability tokens granted beyond what the
// tier implies.
type WhitelistEntry struct {
	Address     [20]byte
	Tier        uint32
	Expiration  uint64 // registry height; zero means never expires
	Permissions []string
}

// Expired reports whether the entry has lapsed at the supplied height. Entries
// remain valid at their expiration height and lapse one height later.
func (e *WhitelistEntry) Expired(now uint64) bool {
	if e == nil {
		return true
	}
	return e.Expiration != 0 && now > e.Expiration
}

// Validate checks the tier bound and permission grammar without touching
// storage. Permissions are not normalised here; see sanitize.
func (e *WhitelistEntry) Validate() error {
	if e == nil {
		return ErrAddressNotWhitelisted
	}
	if e.Tier == 0 {
		return ErrInvalidTier
	}
	for _, perm := range e.Permissions {
		if _, err := NormalizePermission(perm); err != nil {
			return err
		}
	}
	return nil
}

// sanitize returns a copy of the entry with permissions normalised,
// deduplicated and sorted so stored records are canonical.
func (e *WhitelistEntry) sanitize() (*WhitelistEntry, error) {
	if e == nil {
		return nil, ErrAddressNotWhitelisted
	}
	if e.Tier == 0 {
		return nil, ErrInvalidTier
	}
	perms, err := NormalizePermissions(e.Permissions)
	if err != nil {
		return nil, err
	}
	clean := &WhitelistEntry{
		Address:     e.Address,
		Tier:        e.Tier,
		Expiration:  e.Expiration,
		Permissions: perms,
	}
	return clean, nil
}

// NormalizePermission validates a single capability token and returns its
// canonical upper-case form. Tokens are 1..32 characters drawn from
// [A-Za-z0-9_].
func NormalizePermission(perm string) (string, error) {
	trimmed := strings.TrimSpace(perm)
	if trimmed == "" || len(trimmed) > maxPermissionLen {
		return "", ErrInvalidPermission
	}
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return "", ErrInvalidPermission
		}
	}
	return strings.ToUpper(trimmed), nil
}

// NormalizePermissions canonicalises a permission list: every token is
// validated and upper-cased, duplicates collapse and the result is sorted.
func NormalizePermissions(perms []string) ([]string, error) {
	if len(perms) == 0 {
		return []string{}, nil
	}
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, perm := range perms {
		normalized, err := NormalizePermission(perm)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	return out, nil
}

// WhitelistSnapshot is an admin-asserted attestation of registry state at a
// point in time. It never feeds back into authorization decisions.
type WhitelistSnapshot struct {
	BlockNumber  uint64
	MerkleRoot   [32]byte
	TotalEntries uint64
}
