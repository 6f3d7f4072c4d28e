package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "eduverify/pkg/domain-errors"
)

func TestParseContentHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"short hash", "Qm123", true},
		{"cid v0", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", true},
		{"empty", "", false},
		{"slash", "Qm/123", false},
		{"inner space", "Qm 123", false},
		{"too long", strings.Repeat("a", 129), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseContentHash(tt.input)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.input, h.String())
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestContentHashShort(t *testing.T) {
	assert.Equal(t, "QmYwAPJzv5CZsnA6...", ContentHash("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG").Short())
	assert.Equal(t, "Qm123", ContentHash("Qm123").Short())
}

func TestParseIndex(t *testing.T) {
	n, err := ParseIndex("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ParseIndex("-1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseIndex("x")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
