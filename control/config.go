// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Named pool profiles loaded from YAML, with reload listener propagation.

package control

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-mempool/api"
	"github.com/momentics/hioload-mempool/pool"
)

// profileFile is the on-disk layout.
type profileFile struct {
	Pools map[string]yaml.Node `yaml:"pools"`
}

// ProfileStore holds validated pool configurations by name.
type ProfileStore struct {
	mu        sync.RWMutex
	profiles  map[string]pool.Config
	listeners []func()
}

// NewProfileStore initializes an empty store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles:  make(map[string]pool.Config),
		listeners: make([]func(), 0),
	}
}

// LoadProfiles parses a profile document. Every profile starts from
// pool.DefaultConfig, so omitted fields keep their defaults.
func LoadProfiles(r io.Reader) (map[string]pool.Config, error) {
	var doc profileFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, api.NewError(api.ErrCodeInvalidConfig, "empty profile document")
		}
		return nil, api.NewError(api.ErrCodeInvalidConfig, "malformed profile document").WithCause(err)
	}
	if len(doc.Pools) == 0 {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "profile document declares no pools")
	}

	out := make(map[string]pool.Config, len(doc.Pools))
	for name, node := range doc.Pools {
		if key, ok := unknownKey(&node); ok {
			return nil, api.NewError(api.ErrCodeInvalidConfig, "unknown profile field").
				WithContext("profile", name).
				WithContext("field", key)
		}
		cfg := pool.DefaultConfig()
		if err := node.Decode(&cfg); err != nil {
			return nil, api.NewError(api.ErrCodeInvalidConfig, "malformed profile").
				WithCause(err).
				WithContext("profile", name)
		}
		if err := cfg.Validate(); err != nil {
			var e *api.Error
			if errors.As(err, &e) {
				return nil, e.WithContext("profile", name)
			}
			return nil, err
		}
		out[name] = cfg
	}
	return out, nil
}

var profileFields = map[string]bool{
	"block_size": true, "element_count": true, "growth": true,
	"alignment": true, "owner": true, "checked": true,
}

// unknownKey reports the first mapping key not recognized as a profile field.
// yaml.Node.Decode has no strict mode of its own.
func unknownKey(n *yaml.Node) (string, bool) {
	if n.Kind != yaml.MappingNode {
		return "", false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i].Value; !profileFields[k] {
			return k, true
		}
	}
	return "", false
}

// LoadProfilesFile reads and parses path.
func LoadProfilesFile(path string) (map[string]pool.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles %s: %w", path, err)
	}
	return LoadProfiles(bytes.NewReader(data))
}

// Get returns a copy of the named profile.
func (ps *ProfileStore) Get(name string) (pool.Config, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	cfg, ok := ps.profiles[name]
	return cfg, ok
}

// Names lists profile names in sorted order.
func (ps *ProfileStore) Names() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	names := make([]string, 0, len(ps.profiles))
	for k := range ps.profiles {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// GetSnapshot returns a copy of all profiles.
func (ps *ProfileStore) GetSnapshot() map[string]pool.Config {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make(map[string]pool.Config, len(ps.profiles))
	for k, v := range ps.profiles {
		out[k] = v
	}
	return out
}

// SetProfiles merges profiles into the store and notifies listeners.
// Pools already built keep the configuration they were built with.
func (ps *ProfileStore) SetProfiles(profiles map[string]pool.Config) {
	ps.mu.Lock()
	for k, v := range profiles {
		ps.profiles[k] = v
	}
	listeners := append([]func(){}, ps.listeners...)
	ps.mu.Unlock()
	dispatchReload(listeners)
}

// Reload parses r and merges the result. Nothing changes on error.
func (ps *ProfileStore) Reload(r io.Reader) error {
	profiles, err := LoadProfiles(r)
	if err != nil {
		return err
	}
	ps.SetProfiles(profiles)
	return nil
}

// ReloadFile is Reload for a path.
func (ps *ProfileStore) ReloadFile(path string) error {
	profiles, err := LoadProfilesFile(path)
	if err != nil {
		return err
	}
	ps.SetProfiles(profiles)
	return nil
}

// OnReload registers a listener hook called after profiles change.
func (ps *ProfileStore) OnReload(fn func()) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.listeners = append(ps.listeners, fn)
}

// NewPool builds a raw pool from the named profile.
func (ps *ProfileStore) NewPool(name string) (*pool.Pool, error) {
	cfg, ok := ps.Get(name)
	if !ok {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "unknown profile").WithContext("profile", name)
	}
	return pool.New(cfg)
}

// dispatchReload invokes listeners synchronously, in registration order.
func dispatchReload(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}
