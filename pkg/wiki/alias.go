package wiki

import "sync"

// AliasTable maps page identities to canonical ids. Entries are never
// removed or rewritten; the first canonical id recorded for a key wins.
type AliasTable struct {
	mu      sync.RWMutex
	aliases map[string]string
}

func NewAliasTable() *AliasTable {
	return &AliasTable{aliases: make(map[string]string)}
}

// Set records identity -> canonical. It reports whether a new entry was added.
func (t *AliasTable) Set(identity, canonical string) bool {
	key := NormalizeTitle(identity)
	canonical = NormalizeTitle(canonical)
	if key == "" || canonical == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.aliases[key]; ok {
		return false
	}
	t.aliases[key] = canonical
	return true
}

// Lookup returns the canonical id recorded for identity.
func (t *AliasTable) Lookup(identity string) (string, bool) {
	key := NormalizeTitle(identity)
	t.mu.RLock()
	defer t.mu.RUnlock()
	canonical, ok := t.aliases[key]
	return canonical, ok
}

// Canonical returns the recorded canonical id, or the normalized identity
// when nothing is known about it yet.
func (t *AliasTable) Canonical(identity string) string {
	if canonical, ok := t.Lookup(identity); ok {
		return canonical
	}
	return NormalizeTitle(identity)
}

func (t *AliasTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.aliases)
}

// Snapshot returns a copy of the table.
func (t *AliasTable) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.aliases))
	for k, v := range t.aliases {
		out[k] = v
	}
	return out
}
