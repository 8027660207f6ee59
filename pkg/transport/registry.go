package transport

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gezibash/arc-kernel/internal/confmap"
)

// StreamFactory opens a stream from a configuration map.
type StreamFactory func(ctx context.Context, config map[string]string, opts Options) (Stream, error)

// BusFactory opens a control bus from a configuration map.
type BusFactory func(ctx context.Context, config map[string]string, opts Options) (Bus, error)

// DefaultsFunc returns the default configuration for a kind.
type DefaultsFunc func() map[string]string

// Kind bundles the constructors a boundary registers. Either factory may be
// nil when the boundary does not offer that contract.
type Kind struct {
	Stream   StreamFactory
	Bus      BusFactory
	Defaults DefaultsFunc
}

var (
	kinds   = make(map[string]Kind)
	kindsMu sync.RWMutex
)

// Register registers a boundary kind.
// Panics if a kind with the same name is already registered.
func Register(name string, k Kind) {
	kindsMu.Lock()
	defer kindsMu.Unlock()

	if _, exists := kinds[name]; exists {
		panic(fmt.Sprintf("transport kind %q already registered", name))
	}
	kinds[name] = k
}

// Kinds returns the names of all registered kinds.
func Kinds() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()

	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered returns true if a kind with the given name is registered.
func IsRegistered(name string) bool {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	_, ok := kinds[name]
	return ok
}

func lookup(name string) (Kind, map[string]string, error) {
	kindsMu.RLock()
	k, ok := kinds[name]
	kindsMu.RUnlock()
	if !ok {
		return Kind{}, nil, confmap.NewConfigError(name, "", fmt.Sprintf("unknown transport kind %q (available: %v)", name, Kinds()))
	}
	var defaults map[string]string
	if k.Defaults != nil {
		defaults = k.Defaults()
	}
	return k, defaults, nil
}

// NewStream opens a stream of the named kind.
func NewStream(ctx context.Context, kind string, config map[string]string, opts Options) (Stream, error) {
	k, defaults, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	if k.Stream == nil {
		return nil, confmap.NewConfigError(kind, "", "kind does not provide streams")
	}
	return k.Stream(ctx, confmap.Merge(defaults, config), opts.WithDefaults())
}

// NewBus opens a control bus of the named kind.
func NewBus(ctx context.Context, kind string, config map[string]string, opts Options) (Bus, error) {
	k, defaults, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	if k.Bus == nil {
		return nil, confmap.NewConfigError(kind, "", "kind does not provide a control bus")
	}
	return k.Bus(ctx, confmap.Merge(defaults, config), opts.WithDefaults())
}
