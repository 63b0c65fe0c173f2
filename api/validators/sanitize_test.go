package validators

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStringCapsRunes(t *testing.T) {
	assert.Equal(t, "smgs", SanitizeString("  smgs  ", 100))
	assert.Equal(t, "assault", SanitizeString("assault-rifles", 7))

	got := SanitizeString("fusilsàpompe", 7)
	assert.Equal(t, "fusilsà", got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "snipers", SanitizeString(" snipers ", 0))
}
