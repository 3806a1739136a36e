package whitelist

import (
	"errors"
	"testing"
)

func TestTierSatisfies(t *testing.T) {
	cases := []struct {
		actual   uint32
		required uint32
		want     bool
	}{
		{1, 0, true}, // zero requirement means any tier
		{1, 1, true},
		{2, 1, true},
		{5, 3, true},
		{1, 2, false},
		{2, 3, false},
	}
	for _, tc := range cases {
		if got := TierSatisfies(tc.actual, tc.required); got != tc.want {
			t.Fatalf("TierSatisfies(%d, %d) = %v, want %v", tc.actual, tc.required, got, tc.want)
		}
	}
}

func TestEntryExpiredBoundary(t *testing.T) {
	entry := &WhitelistEntry{Address: addr(1), Tier: 1, Expiration: 1000}
	if entry.Expired(500) {
		t.Fatalf("entry should be live before expiration")
	}
	if entry.Expired(1000) {
		t.Fatalf("entry should still be live at the expiration height")
	}
	if !entry.Expired(1001) {
		t.Fatalf("entry should lapse one height past expiration")
	}

	forever := &WhitelistEntry{Address: addr(2), Tier: 1}
	if forever.Expired(^uint64(0)) {
		t.Fatalf("zero expiration must mean never")
	}
}

func TestNormalizePermission(t *testing.T) {
	got, err := NormalizePermission("  puzzle ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "PUZZLE" {
		t.Fatalf("expected PUZZLE, got %q", got)
	}

	for _, bad := range []string{"", "   ", "has space", "semi;colon", "über", "0123456789012345678901234567890123"} {
		if _, err := NormalizePermission(bad); !errors.Is(err, ErrInvalidPermission) {
			t.Fatalf("expected ErrInvalidPermission for %q, got %v", bad, err)
		}
	}
}

func TestNormalizePermissionsDeduplicatesAndSorts(t *testing.T) {
	perms, err := NormalizePermissions([]string{"puzzle", "EVENT", "Puzzle", "event"})
	if err != nil {
		t.Fatalf("normalize list: %v", err)
	}
	if len(perms) != 2 || perms[0] != "EVENT" || perms[1] != "PUZZLE" {
		t.Fatalf("unexpected canonical list: %v", perms)
	}
}

func TestResolvePermissionUnion(t *testing.T) {
	entry := &WhitelistEntry{Address: addr(1), Tier: 2, Permissions: []string{"PUZZLE"}}
	tierPerms := []string{"BASIC"}

	if !ResolvePermission(entry, tierPerms, "PUZZLE") {
		t.Fatalf("entry-level permission should resolve")
	}
	if !ResolvePermission(entry, tierPerms, "BASIC") {
		t.Fatalf("tier-level permission should resolve")
	}
	if ResolvePermission(entry, tierPerms, "PREMIUM") {
		t.Fatalf("ungranted permission should not resolve")
	}
	if ResolvePermission(nil, tierPerms, "BASIC") {
		t.Fatalf("nil entry should never resolve")
	}
}
