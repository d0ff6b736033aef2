package services

import "sync"

// Feature is a named data category the end user can allow or deny
// independently.
type Feature string

const (
	FeatureSessions Feature = "sessions"
	FeatureEvents   Feature = "events"
	FeatureLocation Feature = "location"
	FeatureCrashes  Feature = "crashes"
	FeatureUsers    Feature = "users"
	FeatureViews    Feature = "views"
)

// ConsentService gates every recording path. With required=false all
// features are allowed; otherwise a feature is denied until explicitly
// granted. Denial is a silent no-op contract, never an error.
type ConsentService struct {
	mu       sync.RWMutex
	required bool
	given    map[Feature]bool
}

func NewConsentService(required bool, given map[Feature]bool) *ConsentService {
	g := make(map[Feature]bool, len(given))
	for f, v := range given {
		g[f] = v
	}
	return &ConsentService{required: required, given: g}
}

func (c *ConsentService) IsGiven(feature Feature) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.required {
		return true
	}
	return c.given[feature]
}

// Apply records the requested changes and returns only the entries
// that actually changed state, preserving no-op calls as empty.
func (c *ConsentService) Apply(changes map[Feature]bool) map[Feature]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.required {
		return nil
	}

	updated := make(map[Feature]bool)
	for feature, allowed := range changes {
		old, known := c.given[feature]
		if !known || old != allowed {
			c.given[feature] = allowed
			updated[feature] = allowed
		}
	}
	return updated
}

// Reset reverts to default-deny; used by Halt.
func (c *ConsentService) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.given = map[Feature]bool{}
}
