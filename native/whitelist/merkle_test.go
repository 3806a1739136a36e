package whitelist

import (
	"errors"
	"testing"
)

func leafSet(n int) [][32]byte {
	leaves := make([][32]byte, 0, n)
	for i := 0; i < n; i++ {
		leaves = append(leaves, LeafHash(addr(byte(i+1)), uint32(i%3+1)))
	}
	return leaves
}

func TestLeafHashBindsTier(t *testing.T) {
	a := LeafHash(addr(1), 1)
	b := LeafHash(addr(1), 2)
	if a == b {
		t.Fatalf("leaf hash must be tier-specific")
	}
	if a != LeafHash(addr(1), 1) {
		t.Fatalf("leaf hash must be deterministic")
	}
}

func TestSingleLeafTree(t *testing.T) {
	leaf := LeafHash(addr(7), 3)
	root, err := ComputeMerkleRoot([][32]byte{leaf})
	if err != nil {
		t.Fatalf("compute root: %v", err)
	}
	if root != leaf {
		t.Fatalf("single-leaf root must equal the leaf")
	}
	proof, err := BuildMerkleProof([][32]byte{leaf}, leaf)
	if err != nil {
		t.Fatalf("build proof: %v", err)
	}
	if len(proof) != 0 {
		t.Fatalf("single-leaf proof must be empty, got %d elements", len(proof))
	}
	if FoldProof(leaf, proof) != root {
		t.Fatalf("empty proof must fold to the leaf itself")
	}
}

func TestProofRoundTripAllSizes(t *testing.T) {
	for n := 1; n <= 9; n++ {
		leaves := leafSet(n)
		root, err := ComputeMerkleRoot(leaves)
		if err != nil {
			t.Fatalf("size %d: compute root: %v", n, err)
		}
		for _, leaf := range leaves {
			proof, err := BuildMerkleProof(leaves, leaf)
			if err != nil {
				t.Fatalf("size %d: build proof: %v", n, err)
			}
			if FoldProof(leaf, proof) != root {
				t.Fatalf("size %d: proof did not fold to root", n)
			}
		}
	}
}

func TestProofRejectsTamperedSibling(t *testing.T) {
	leaves := leafSet(6)
	root, err := ComputeMerkleRoot(leaves)
	if err != nil {
		t.Fatalf("compute root: %v", err)
	}
	proof, err := BuildMerkleProof(leaves, leaves[0])
	if err != nil {
		t.Fatalf("build proof: %v", err)
	}
	for i := range proof {
		for bit := 0; bit < 8; bit++ {
			tampered := make([][32]byte, len(proof))
			copy(tampered, proof)
			tampered[i][0] ^= 1 << bit
			if FoldProof(leaves[0], tampered) == root {
				t.Fatalf("flipped bit %d of element %d still verified", bit, i)
			}
		}
	}
}

func TestProofForWrongTierFails(t *testing.T) {
	leaves := leafSet(4)
	root, err := ComputeMerkleRoot(leaves)
	if err != nil {
		t.Fatalf("compute root: %v", err)
	}
	// leaves[0] attests (addr(1), tier 1); the same proof must not attest
	// another tier for the same address.
	proof, err := BuildMerkleProof(leaves, leaves[0])
	if err != nil {
		t.Fatalf("build proof: %v", err)
	}
	if FoldProof(LeafHash(addr(1), 2), proof) == root {
		t.Fatalf("proof for tier 1 must not verify tier 2")
	}
}

func TestBuilderRejectsDuplicatesAndUnknownLeaves(t *testing.T) {
	leaf := LeafHash(addr(1), 1)
	if _, err := ComputeMerkleRoot([][32]byte{leaf, leaf}); !errors.Is(err, ErrInvalidMerkleProof) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if _, err := ComputeMerkleRoot(nil); !errors.Is(err, ErrInvalidMerkleProof) {
		t.Fatalf("expected empty-set rejection, got %v", err)
	}
	leaves := leafSet(3)
	if _, err := BuildMerkleProof(leaves, LeafHash(addr(99), 1)); !errors.Is(err, ErrInvalidMerkleProof) {
		t.Fatalf("expected unknown-leaf rejection, got %v", err)
	}
}

func TestBuilderIsOrderInsensitive(t *testing.T) {
	leaves := leafSet(5)
	shuffled := [][32]byte{leaves[3], leaves[0], leaves[4], leaves[2], leaves[1]}

	a, err := ComputeMerkleRoot(leaves)
	if err != nil {
		t.Fatalf("compute root: %v", err)
	}
	b, err := ComputeMerkleRoot(shuffled)
	if err != nil {
		t.Fatalf("compute shuffled root: %v", err)
	}
	if a != b {
		t.Fatalf("root must not depend on input order")
	}
}
