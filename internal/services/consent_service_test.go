package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsentService_NotRequired_EverythingAllowed(t *testing.T) {
	c := NewConsentService(false, nil)

	assert.True(t, c.IsGiven(FeatureSessions))
	assert.True(t, c.IsGiven(FeatureCrashes))
	assert.True(t, c.IsGiven(Feature("unknown")))
}

func TestConsentService_Required_DeniesByDefault(t *testing.T) {
	c := NewConsentService(true, nil)

	assert.False(t, c.IsGiven(FeatureSessions))
	assert.False(t, c.IsGiven(FeatureEvents))
}

func TestConsentService_InitialGrants(t *testing.T) {
	c := NewConsentService(true, map[Feature]bool{FeatureEvents: true})

	assert.True(t, c.IsGiven(FeatureEvents))
	assert.False(t, c.IsGiven(FeatureSessions))
}

func TestConsentService_Apply_ReturnsOnlyActualChanges(t *testing.T) {
	c := NewConsentService(true, map[Feature]bool{FeatureEvents: true})

	updated := c.Apply(map[Feature]bool{
		FeatureEvents:   true,  // already granted, no change
		FeatureSessions: true,  // new grant
		FeatureCrashes:  false, // explicit deny of an unknown feature is a change
	})

	assert.Equal(t, map[Feature]bool{
		FeatureSessions: true,
		FeatureCrashes:  false,
	}, updated)
	assert.True(t, c.IsGiven(FeatureSessions))
}

func TestConsentService_Apply_NotRequiredIsNoop(t *testing.T) {
	c := NewConsentService(false, nil)

	updated := c.Apply(map[Feature]bool{FeatureSessions: false})
	assert.Empty(t, updated)
	assert.True(t, c.IsGiven(FeatureSessions))
}

func TestConsentService_Apply_Revoke(t *testing.T) {
	c := NewConsentService(true, map[Feature]bool{FeatureLocation: true})

	updated := c.Apply(map[Feature]bool{FeatureLocation: false})
	assert.Equal(t, map[Feature]bool{FeatureLocation: false}, updated)
	assert.False(t, c.IsGiven(FeatureLocation))
}

func TestConsentService_Reset_RevertsToDeny(t *testing.T) {
	c := NewConsentService(true, map[Feature]bool{FeatureEvents: true})

	c.Reset()
	assert.False(t, c.IsGiven(FeatureEvents))
}
