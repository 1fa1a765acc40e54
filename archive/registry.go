package archive

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Factory reconstructs an object from its archived record. Sub-objects
// referenced by id are resolved through in.
type Factory func(in *InputArchive, record *yaml.Node) (Persistable, error)

// Registry state - protected by mutex for thread-safe access.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register registers a factory for the given persistence name. It is
// typically called from init() in the package that defines the type,
// following the database/sql driver pattern:
//
//	func init() {
//	    archive.Register("CoaddBoundedField", readBoundedField)
//	}
//
// Register panics if factory is nil or the name is already registered.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("archive: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("archive: Register called twice for " + name)
	}
	factories[name] = factory
}

// Unregister removes a factory. Primarily useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// IsRegistered reports whether a factory exists for name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Registered returns the sorted list of registered persistence names.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Factory, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("archive: %q (forgotten import?): %w", name, ErrUnknownType)
	}
	return f, nil
}
