package storage

// PrefixDB carves a keyspace out of an underlying DB by prepending a fixed
// prefix to every key. The eviction log and the known-peer set each get one,
// so both can share the node database without key collisions.
type PrefixDB struct {
	inner  DB
	prefix string
}

// NewPrefixDB wraps inner so all keys live under prefix.
func NewPrefixDB(inner DB, prefix string) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: prefix}
}

func (p *PrefixDB) full(key []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(key))
	out = append(out, p.prefix...)
	return append(out, key...)
}

// Get returns the value stored under key, or ErrNotFound.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.full(key))
}

// Put stores value under key.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.full(key), value)
}

// Delete removes key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.full(key))
}

// Has reports whether key has a value.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.full(key))
}

// Scan visits keys under this keyspace, with the namespace prefix stripped
// so callers see only their logical keys.
func (p *PrefixDB) Scan(prefix []byte, fn func(key, value []byte) error) error {
	return p.inner.Scan(p.full(prefix), func(key, value []byte) error {
		return fn(key[len(p.prefix):], value)
	})
}

// Close is a no-op; the underlying DB owns its lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}
