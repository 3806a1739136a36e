package whitelist

// TierSatisfies reports whether an entry at actual tier meets the required
// tier. A zero requirement means "any tier"; otherwise higher tiers satisfy
// lower requirements.
func TierSatisfies(actual, required uint32) bool {
	return required == 0 || actual >= required
}

// ResolvePermission reports whether the permission is granted either directly
// on the entry or through the tier-wide permission list. Both inputs are
// expected in canonical (normalised) form.
func ResolvePermission(entry *WhitelistEntry, tierPerms []string, perm string) bool {
	if entry == nil {
		return false
	}
	for _, granted := range entry.Permissions {
		if granted == perm {
			return true
		}
	}
	for _, granted := range tierPerms {
		if granted == perm {
			return true
		}
	}
	return false
}
