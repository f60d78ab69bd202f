package tree

// Leaf is one ledger entry as seen by the fingerprint.
type Leaf struct {
	Path   string
	Digest string // "-" for entries without a digest
}

// Serialize implements the go-merkletree DataBlock interface.
func (l Leaf) Serialize() ([]byte, error) {
	buf := make([]byte, 0, len(l.Path)+1+len(l.Digest))
	buf = append(buf, l.Path...)
	buf = append(buf, 0)
	buf = append(buf, l.Digest...)
	return buf, nil
}
