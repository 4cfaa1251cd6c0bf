package core

import (
	"fmt"
	"sort"
	"sync"
)

// ProcedureInfo describes a runnable procedure for listings and the
// dashboard.
type ProcedureInfo struct {
	Key             string   `json:"key"`
	Label           string   `json:"label"`
	Description     string   `json:"description"`
	Inputs          []string `json:"inputs"`
	DefaultFileName string   `json:"default_file_name"`
}

var (
	registry   = make(map[string]ProcedureInfo)
	registryMu sync.RWMutex
)

// Register adds a procedure to the registry.
// Panics if a procedure with the same key is already registered.
func Register(info ProcedureInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[info.Key]; exists {
		panic(fmt.Sprintf("procedure already registered: %s", info.Key))
	}
	registry[info.Key] = info
}

// Get returns a procedure by key.
// Returns false if not found.
func Get(key string) (ProcedureInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	info, ok := registry[key]
	return info, ok
}

// All returns every registered procedure sorted by key.
func All() []ProcedureInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ProcedureInfo, 0, len(registry))
	for _, info := range registry {
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// ProcedureCount returns the number of registered procedures.
func ProcedureCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
