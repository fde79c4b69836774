package types

// Entry is one raw key/value pair written to a storage backend.
type Entry struct {
	Key   string
	Value []byte
}
