// Package features holds runtime feature flags.
package features

import "sync"

// Predefined feature flag names.
const (
	// FeatureCacheEnabled enables/disables the recommendation response cache.
	FeatureCacheEnabled = "cache_enabled"
	// FeatureEventHooksEnabled enables/disables event-driven hooks.
	FeatureEventHooksEnabled = "event_hooks_enabled"
	// FeatureRotatingRewards gates rotating bonus categories; when off,
	// every rotating reward row is treated as inactive. Kill switch for
	// bad rotation data.
	FeatureRotatingRewards = "rotating_rewards"
	// FeatureSavedCardDecoration enables the is_saved annotation.
	FeatureSavedCardDecoration = "saved_card_decoration"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string
	Enabled     bool
	Description string
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates a manager with no flags registered.
func NewManager() *Manager {
	return &Manager{flags: make(map[string]*FeatureFlag)}
}

// NewDefaultManager creates a manager with the service's standard flags
// registered and enabled.
func NewDefaultManager() *Manager {
	m := NewManager()
	m.Register(FeatureCacheEnabled, true, "recommendation response caching")
	m.Register(FeatureEventHooksEnabled, true, "event-driven hooks")
	m.Register(FeatureRotatingRewards, true, "quarterly rotating bonus categories")
	m.Register(FeatureSavedCardDecoration, true, "is_saved annotation on results")
	return m
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled. Unknown flags are
// treated as disabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	return exists && flag.Enabled
}

// Enable enables a registered feature flag.
func (m *Manager) Enable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = true
	}
}

// Disable disables a registered feature flag.
func (m *Manager) Disable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = false
	}
}

// GetAll returns a copy of all feature flags.
func (m *Manager) GetAll() map[string]*FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*FeatureFlag, len(m.flags))
	for k, v := range m.flags {
		result[k] = &FeatureFlag{
			Name:        v.Name,
			Enabled:     v.Enabled,
			Description: v.Description,
		}
	}
	return result
}
