package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tiergate/crypto"
	"tiergate/native/whitelist"
)

// membershipEntry is one row of the entries.json file consumed by the merkle
// commands: a bech32 address paired with its tier.
type membershipEntry struct {
	Address string `json:"address"`
	Tier    uint32 `json:"tier"`
}

type membershipSet struct {
	entries []membershipEntry
	leaves  [][32]byte
	// byAddress maps lowercased bech32 addresses to their leaf.
	byAddress map[string][32]byte
	tiers     map[string]uint32
}

func loadMembership(path string) (*membershipSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read membership file %s: %w", path, err)
	}
	var entries []membershipEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse membership file %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("membership file %s contains no entries", path)
	}

	set := &membershipSet{
		entries:   entries,
		leaves:    make([][32]byte, 0, len(entries)),
		byAddress: make(map[string][32]byte, len(entries)),
		tiers:     make(map[string]uint32, len(entries)),
	}
	for _, entry := range entries {
		decoded, err := crypto.DecodeAddress(strings.TrimSpace(entry.Address))
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", entry.Address, err)
		}
		var addr [20]byte
		copy(addr[:], decoded.Bytes())
		leaf := whitelist.LeafHash(addr, entry.Tier)
		key := strings.ToLower(strings.TrimSpace(entry.Address))
		set.leaves = append(set.leaves, leaf)
		set.byAddress[key] = leaf
		set.tiers[key] = entry.Tier
	}
	return set, nil
}

func (s *membershipSet) leafFor(address string) ([32]byte, uint32, error) {
	key := strings.ToLower(strings.TrimSpace(address))
	leaf, ok := s.byAddress[key]
	if !ok {
		return [32]byte{}, 0, fmt.Errorf("address %s is not in the membership file", address)
	}
	return leaf, s.tiers[key], nil
}

func printMerkleRoot(path string) {
	set, err := loadMembership(path)
	if err != nil {
		fmt.Printf("Error loading membership: %v\n", err)
		return
	}
	root, err := whitelist.ComputeMerkleRoot(set.leaves)
	if err != nil {
		fmt.Printf("Error computing root: %v\n", err)
		return
	}
	fmt.Printf("Entries: %d\n", len(set.entries))
	fmt.Printf("Root:    0x%s\n", hex.EncodeToString(root[:]))
}

func printMerkleProof(path, address string) {
	set, err := loadMembership(path)
	if err != nil {
		fmt.Printf("Error loading membership: %v\n", err)
		return
	}
	leaf, tier, err := set.leafFor(address)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	proof, err := whitelist.BuildMerkleProof(set.leaves, leaf)
	if err != nil {
		fmt.Printf("Error building proof: %v\n", err)
		return
	}
	fmt.Printf("Address: %s (tier %d)\n", address, tier)
	fmt.Printf("Proof (%d elements):\n", len(proof))
	for _, element := range proof {
		fmt.Printf("  0x%s\n", hex.EncodeToString(element[:]))
	}
}

func submitMerkleRoot(caller, path string) {
	set, err := loadMembership(path)
	if err != nil {
		fmt.Printf("Error loading membership: %v\n", err)
		return
	}
	root, err := whitelist.ComputeMerkleRoot(set.leaves)
	if err != nil {
		fmt.Printf("Error computing root: %v\n", err)
		return
	}
	rootHex := "0x" + hex.EncodeToString(root[:])
	if _, err := callRPC("wl_setMerkleRoot", map[string]interface{}{
		"caller": caller,
		"root":   rootHex,
	}, true); err != nil {
		fmt.Printf("Error committing root: %v\n", err)
		return
	}
	fmt.Printf("Committed root %s over %d entries.\n", rootHex, len(set.entries))
}

func verifyProofRemote(path, address string) {
	set, err := loadMembership(path)
	if err != nil {
		fmt.Printf("Error loading membership: %v\n", err)
		return
	}
	leaf, tier, err := set.leafFor(address)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	proof, err := whitelist.BuildMerkleProof(set.leaves, leaf)
	if err != nil {
		fmt.Printf("Error building proof: %v\n", err)
		return
	}
	proofHex := make([]string, 0, len(proof))
	for _, element := range proof {
		proofHex = append(proofHex, "0x"+hex.EncodeToString(element[:]))
	}
	result, err := callRPC("wl_verifyMerkleProof", map[string]interface{}{
		"address": address,
		"tier":    tier,
		"proof":   proofHex,
	}, false)
	if err != nil {
		fmt.Printf("Error verifying proof: %v\n", err)
		return
	}
	fmt.Printf("Proof valid: %v\n", result)
}

func createSnapshot(caller, path string) {
	set, err := loadMembership(path)
	if err != nil {
		fmt.Printf("Error loading membership: %v\n", err)
		return
	}
	root, err := whitelist.ComputeMerkleRoot(set.leaves)
	if err != nil {
		fmt.Printf("Error computing root: %v\n", err)
		return
	}
	result, err := callRPC("wl_createSnapshot", map[string]interface{}{
		"caller":       caller,
		"root":         "0x" + hex.EncodeToString(root[:]),
		"totalEntries": len(set.entries),
	}, true)
	if err != nil {
		fmt.Printf("Error creating snapshot: %v\n", err)
		return
	}
	printJSON(result)
}
