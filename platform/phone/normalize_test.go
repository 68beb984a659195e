package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeE164(t *testing.T) {
	got, ok := NormalizeE164(" 01 42 68 53 00 ")
	assert.True(t, ok)
	assert.Equal(t, "+33142685300", got)

	got, ok = NormalizeE164("+33 6 12 34 56 78")
	assert.True(t, ok)
	assert.Equal(t, "+33612345678", got)

	_, ok = NormalizeE164("12")
	assert.False(t, ok)

	_, ok = NormalizeE164("   ")
	assert.False(t, ok)
}
