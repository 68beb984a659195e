package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Chapelle du Moulin", "Chapelle du Moulin"},
		{"tags", "Église <b>Lumière</b>", "Église Lumière"},
		{"encoded tags", "&lt;script&gt;alert(1)&lt;/script&gt;Paroisse", "alert(1)Paroisse"},
		{"entities kept as text", "Saint Pierre &amp; Paul", "Saint Pierre & Paul"},
		{"whitespace", "  Temple \n\t protestant  ", "Temple protestant"},
		{"decomposed accents", "E\u0301glise", "\u00c9glise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestTextPtr(t *testing.T) {
	assert.Nil(t, TextPtr(nil))

	blank := "  <br/> "
	assert.Nil(t, TextPtr(&blank))

	value := "Culte à 10h"
	got := TextPtr(&value)
	if assert.NotNil(t, got) {
		assert.Equal(t, "Culte à 10h", *got)
	}
}
