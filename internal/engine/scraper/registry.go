package scraper

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rendis/leadtap/internal/model"
)

var (
	registryMu sync.RWMutex
	registry   = map[model.Profile]Factory{}
)

// Register makes a factory available under profile. Sites call it from init.
func Register(profile model.Profile, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[profile] = f
}

// Lookup resolves the factory registered for profile.
func Lookup(profile model.Profile) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[profile]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, profile)
	}
	return f, nil
}

// Profiles lists registered profiles in sorted order.
func Profiles() []model.Profile {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]model.Profile, 0, len(registry))
	for p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
