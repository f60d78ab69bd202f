package tree

import (
	"testing"
)

func TestRoot_Empty(t *testing.T) {
	root, err := Root(nil)
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}

	if root == "" {
		t.Error("Root hash should not be empty even for empty ledger")
	}
}

func TestRoot_SingleLeaf(t *testing.T) {
	root, err := Root([]Leaf{{Path: "/photos/a.jpg", Digest: "abc123"}})
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}

	empty, _ := Root(nil)
	if root == "" || root == empty {
		t.Errorf("Single leaf root should be distinct from empty root, got %q", root)
	}
}

func TestRoot_OrderIndependent(t *testing.T) {
	leaves := []Leaf{
		{Path: "/photos/a.jpg", Digest: "hash1"},
		{Path: "/photos/b.jpg", Digest: "hash2"},
		{Path: "/photos/c.jpg", Digest: "-"},
	}
	reversed := []Leaf{leaves[2], leaves[1], leaves[0]}

	root1, err := Root(leaves)
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	root2, err := Root(reversed)
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}

	if root1 != root2 {
		t.Error("Same leaves in different order should produce same root")
	}
}

func TestRoot_DifferentInputsDifferentHash(t *testing.T) {
	root1, err := Root([]Leaf{
		{Path: "/photos/a.jpg", Digest: "hash1"},
		{Path: "/photos/b.jpg", Digest: "hash2"},
	})
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}

	root2, err := Root([]Leaf{
		{Path: "/photos/a.jpg", Digest: "hash1"},
		{Path: "/photos/b.jpg", Digest: "hash3"},
	})
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}

	if root1 == root2 {
		t.Error("Different digests should produce different roots")
	}
}
