package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceOrder(t *testing.T) {
	order := []Relationship{Provider, Peer, Customer, Origin, Unknown}
	for i := 1; i < len(order); i++ {
		assert.True(t, Prefers(order[i], order[i-1]), "%s should be preferred to %s", order[i], order[i-1])
		assert.False(t, Prefers(order[i-1], order[i]), "%s should not be preferred to %s", order[i-1], order[i])
	}
	for _, rel := range order {
		assert.False(t, Prefers(rel, rel))
	}
}

func TestPreferenceIndependentOfDeclaration(t *testing.T) {
	// Unknown is declared first but ranked last
	assert.Less(t, int(Unknown), int(Provider))
	assert.Greater(t, Preference(Unknown), Preference(Origin))
	assert.Equal(t, Preference(Unknown), Preference(Relationship(42)))
}

func TestRelationshipText(t *testing.T) {
	for _, rel := range []Relationship{Provider, Peer, Customer, Origin, Unknown} {
		text, err := rel.MarshalText()
		require.NoError(t, err)
		var parsed Relationship
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, rel, parsed)
	}
	assert.Equal(t, "customer", Customer.String())

	_, err := ParseRelationship("sibling")
	assert.Error(t, err)
}
