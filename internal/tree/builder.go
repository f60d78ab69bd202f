package tree

import (
	"encoding/hex"
	"fmt"
	"sort"

	mt "github.com/txaty/go-merkletree"

	"phoso/internal/hash"
)

// Root computes the merkle root over a set of leaves:
//  1. Sort leaves by path so input order does not matter
//  2. Hash each leaf with xxHash
//  3. Let go-merkletree pair and hash levels up to a single root
//
// go-merkletree needs at least two blocks, so empty and single-leaf sets
// are hashed directly.
func Root(leaves []Leaf) (string, error) {
	if len(leaves) == 0 {
		rootHash, err := hash.XXHashFunc([]byte("empty-ledger"))
		if err != nil {
			return "", fmt.Errorf("failed to create empty tree hash: %w", err)
		}
		return hex.EncodeToString(rootHash), nil
	}

	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].Digest < sorted[j].Digest
	})

	if len(sorted) == 1 {
		data, err := sorted[0].Serialize()
		if err != nil {
			return "", err
		}
		rootHash, err := hash.XXHashFunc(data)
		if err != nil {
			return "", fmt.Errorf("failed to hash leaf: %w", err)
		}
		return hex.EncodeToString(rootHash), nil
	}

	blocks := make([]mt.DataBlock, len(sorted))
	for i, leaf := range sorted {
		blocks[i] = leaf
	}

	merkleTree, err := mt.New(&mt.Config{
		HashFunc: hash.XXHashFunc,
		Mode:     mt.ModeTreeBuild,
	}, blocks)
	if err != nil {
		return "", fmt.Errorf("failed to build merkle tree: %w", err)
	}

	return hex.EncodeToString(merkleTree.Root), nil
}
