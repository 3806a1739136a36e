package whitelist

import (
	"bytes"
	"encoding/binary"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Merkle scheme, fixed for all roots committed to this registry:
//
//   leaf     = keccak256(address[20] || tier as big-endian uint32)
//   parent   = keccak256(sort(a, b))  -- byte-wise sort, no direction bits
//   tree     = leaves sorted ascending, paired level by level; an unpaired
//              trailing node is promoted unchanged to the next level
//
// Both fields are part of the leaf preimage, so a proof attests exactly one
// (address, tier) pair. Any change to these rules is a breaking protocol
// change and requires a new root epoch.

// LeafHash computes the leaf digest for an (address, tier) membership claim.
func LeafHash(address [20]byte, tier uint32) [32]byte {
	var tierBytes [4]byte
	binary.BigEndian.PutUint32(tierBytes[:], tier)
	var leaf [32]byte
	copy(leaf[:], ethcrypto.Keccak256(address[:], tierBytes[:]))
	return leaf
}

// hashPair combines two nodes in canonical order: the smaller digest is
// hashed first regardless of tree position.
func hashPair(a, b [32]byte) [32]byte {
	var parent [32]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(parent[:], ethcrypto.Keccak256(a[:], b[:]))
	} else {
		copy(parent[:], ethcrypto.Keccak256(b[:], a[:]))
	}
	return parent
}

// FoldProof folds a leaf upward through the sibling sequence and returns the
// resulting root candidate. An empty proof returns the leaf itself (a tree of
// size one).
func FoldProof(leaf [32]byte, proof [][32]byte) [32]byte {
	current := leaf
	for _, sibling := range proof {
		current = hashPair(current, sibling)
	}
	return current
}

// sortLeaves returns the canonical (ascending, deduplicated-checked) leaf
// order used for tree construction.
func sortLeaves(leaves [][32]byte) ([][32]byte, error) {
	if len(leaves) == 0 {
		return nil, ErrInvalidMerkleProof
	}
	sorted := make([][32]byte, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, ErrInvalidMerkleProof
		}
	}
	return sorted, nil
}

// ComputeMerkleRoot builds the canonical tree over the leaf set and returns
// its root. Duplicate leaves are rejected; an empty set has no root.
func ComputeMerkleRoot(leaves [][32]byte) ([32]byte, error) {
	level, err := sortLeaves(leaves)
	if err != nil {
		return [32]byte{}, err
	}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0], nil
}

// BuildMerkleProof returns the sibling sequence proving membership of target
// in the canonical tree over the leaf set. The proof verifies against the
// root produced by ComputeMerkleRoot for the same set.
func BuildMerkleProof(leaves [][32]byte, target [32]byte) ([][32]byte, error) {
	level, err := sortLeaves(leaves)
	if err != nil {
		return nil, err
	}
	index := -1
	for i, leaf := range level {
		if leaf == target {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrInvalidMerkleProof
	}
	proof := make([][32]byte, 0)
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		if sibling := index ^ 1; sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		index /= 2
		level = next
	}
	return proof, nil
}
