package geocoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "rue de la Paix", NormalizeQuery("  rue   de\tla Paix "))
	assert.Equal(t, "caf\u00e9", NormalizeQuery("cafe\u0301"))
}

func TestIsSearchableCountsRunes(t *testing.T) {
	assert.False(t, IsSearchable(NormalizeQuery("ab")))
	assert.False(t, IsSearchable(NormalizeQuery("  a  ")))
	assert.True(t, IsSearchable(NormalizeQuery(" a b ")))
	assert.True(t, IsSearchable(NormalizeQuery("abc")))
	assert.True(t, IsSearchable(NormalizeQuery("éèà")))
	// Two composed characters, four code points before normalization.
	assert.False(t, IsSearchable(NormalizeQuery("e\u0301e\u0301")))
}
