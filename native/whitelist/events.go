package whitelist

import (
	"encoding/hex"
	"strconv"
	"strings"

	"tiergate/core/types"
	"tiergate/crypto"
)

const (
	// EventTypeEntryAdded is emitted when an address is added to the registry.
	EventTypeEntryAdded = "whitelist.entryAdded"
	// EventTypeEntryUpdated is emitted when an existing record is replaced via
	// the explicit update path.
	EventTypeEntryUpdated = "whitelist.entryUpdated"
	// EventTypeEntryRemoved is emitted when a record is removed.
	EventTypeEntryRemoved = "whitelist.entryRemoved"
	// EventTypeTierPermissionsUpdated is emitted when a tier-wide permission
	// list changes.
	EventTypeTierPermissionsUpdated = "whitelist.tierPermissionsUpdated"
	// EventTypeMerkleRootUpdated is emitted when the membership root is
	// replaced.
	EventTypeMerkleRootUpdated = "whitelist.merkleRootUpdated"
	// EventTypeSnapshotCreated is emitted when a new attestation is recorded.
	EventTypeSnapshotCreated = "whitelist.snapshotCreated"
	// EventTypeAdminTransferred is emitted on initialisation and on every
	// admin handover.
	EventTypeAdminTransferred = "whitelist.adminTransferred"
)

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.TGPrefix, addr[:]).String()
}

type entryEvent struct {
	eventType string
	entry     *WhitelistEntry
}

func (e entryEvent) EventType() string { return e.eventType }

func (e entryEvent) Event() *types.Event {
	attrs := make(map[string]string)
	if e.entry != nil {
		attrs["address"] = formatAddress(e.entry.Address)
		attrs["tier"] = strconv.FormatUint(uint64(e.entry.Tier), 10)
		if e.entry.Expiration > 0 {
			attrs["expiration"] = strconv.FormatUint(e.entry.Expiration, 10)
		}
		if len(e.entry.Permissions) > 0 {
			attrs["permissions"] = strings.Join(e.entry.Permissions, ",")
		}
	}
	return &types.Event{Type: e.eventType, Attributes: attrs}
}

type entryRemovedEvent struct {
	address [20]byte
}

func (entryRemovedEvent) EventType() string { return EventTypeEntryRemoved }

func (e entryRemovedEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeEntryRemoved,
		Attributes: map[string]string{
			"address": formatAddress(e.address),
		},
	}
}

type tierPermissionsEvent struct {
	tier  uint32
	perms []string
}

func (tierPermissionsEvent) EventType() string { return EventTypeTierPermissionsUpdated }

func (e tierPermissionsEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeTierPermissionsUpdated,
		Attributes: map[string]string{
			"tier":        strconv.FormatUint(uint64(e.tier), 10),
			"permissions": strings.Join(e.perms, ","),
		},
	}
}

type merkleRootEvent struct {
	root [32]byte
}

func (merkleRootEvent) EventType() string { return EventTypeMerkleRootUpdated }

func (e merkleRootEvent) Event() *types.Event {
	return &types.Event{
		Type: EventTypeMerkleRootUpdated,
		Attributes: map[string]string{
			"root": hex.EncodeToString(e.root[:]),
		},
	}
}

type snapshotEvent struct {
	snapshot *WhitelistSnapshot
}

func (snapshotEvent) EventType() string { return EventTypeSnapshotCreated }

func (e snapshotEvent) Event() *types.Event {
	attrs := make(map[string]string)
	if e.snapshot != nil {
		attrs["blockNumber"] = strconv.FormatUint(e.snapshot.BlockNumber, 10)
		attrs["root"] = hex.EncodeToString(e.snapshot.MerkleRoot[:])
		attrs["totalEntries"] = strconv.FormatUint(e.snapshot.TotalEntries, 10)
	}
	return &types.Event{Type: EventTypeSnapshotCreated, Attributes: attrs}
}

type adminTransferredEvent struct {
	previous [20]byte
	current  [20]byte
	initial  bool
}

func (adminTransferredEvent) EventType() string { return EventTypeAdminTransferred }

func (e adminTransferredEvent) Event() *types.Event {
	attrs := map[string]string{
		"admin": formatAddress(e.current),
	}
	if !e.initial {
		attrs["previousAdmin"] = formatAddress(e.previous)
	}
	return &types.Event{Type: EventTypeAdminTransferred, Attributes: attrs}
}
