package compiler

import (
	"sort"
	"sync"
)

// SymbolTable is a link-wide name table with insert-if-absent semantics.
// Workers compiling different classes publish C wrappers and other shared
// definitions into it; the first definition of a name wins.
type SymbolTable struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{entries: make(map[string]string)}
}

// Insert stores value under name unless name is present. It reports
// whether the value was stored.
func (t *SymbolTable) Insert(name, value string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[name]; ok {
		return false
	}
	t.entries[name] = value
	return true
}

// Get returns the value stored under name.
func (t *SymbolTable) Get(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[name]
	return v, ok
}

// Len returns the number of names.
func (t *SymbolTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Names returns every name, sorted.
func (t *SymbolTable) Names() []string {
	t.mu.Lock()
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	t.mu.Unlock()
	sort.Strings(names)
	return names
}
