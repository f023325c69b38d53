package core

// registry.go holds the named validation profiles.
//
// Built-in profiles register at init time; deployments can add more from a
// YAML file at startup. After startup the registry is only read, so every
// run sees the same immutable rule snapshot.

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownProfile is returned when a request names an unregistered profile.
var ErrUnknownProfile = errors.New("unknown profile")

// Profile is a named rule set and action classification.
type Profile struct {
	Name        string               `json:"name" yaml:"name"`
	Label       string               `json:"label" yaml:"label"`
	Description string               `json:"description,omitempty" yaml:"description"`
	Rules       RuleSet              `json:"rules" yaml:"rules"`
	Actions     ActionClassification `json:"actions" yaml:"actions"`
}

// Validate compiles the profile's rules to catch configuration errors early.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile has no name", ErrMalformedRuleSet)
	}
	if err := p.Rules.Validate(p.Actions); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return nil
}

var (
	registry   = make(map[string]Profile)
	registryMu sync.RWMutex
)

func profileKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a profile to the registry.
// Panics if the profile is invalid or already registered.
func Register(p Profile) {
	if err := register(p); err != nil {
		panic(err.Error())
	}
}

func register(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Label == "" {
		p.Label = p.Name
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	key := profileKey(p.Name)
	if _, exists := registry[key]; exists {
		return fmt.Errorf("profile already registered: %s", p.Name)
	}
	registry[key] = p
	return nil
}

// Get returns a profile by name, matched case-insensitively.
func Get(name string) (Profile, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[profileKey(name)]
	return p, ok
}

// All returns all registered profiles sorted by name.
func All() []Profile {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Profile, 0, len(registry))
	for _, p := range registry {
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return profileKey(result[i].Name) < profileKey(result[j].Name)
	})
	return result
}

// ProfileCount returns the number of registered profiles.
func ProfileCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered profiles.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Profile)
}

// profileFile is the on-disk layout of a profiles YAML file.
type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// ParseProfilesYAML decodes and validates a profiles document.
func ParseProfilesYAML(data []byte) ([]Profile, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("profiles: document is empty")
	}
	var doc profileFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("profiles: decode: %w", err)
	}

	seen := make(map[string]bool, len(doc.Profiles))
	for _, p := range doc.Profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		key := profileKey(p.Name)
		if seen[key] {
			return nil, fmt.Errorf("profiles: duplicate profile %q", p.Name)
		}
		seen[key] = true
	}
	return doc.Profiles, nil
}

// LoadProfiles reads a YAML profiles file and registers every profile in it.
// An empty path is a no-op. Returns the number of profiles registered.
func LoadProfiles(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("profiles: read %s: %w", path, err)
	}
	profiles, err := ParseProfilesYAML(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	for i, p := range profiles {
		if err := register(p); err != nil {
			return i, fmt.Errorf("%s: %w", path, err)
		}
	}
	return len(profiles), nil
}
