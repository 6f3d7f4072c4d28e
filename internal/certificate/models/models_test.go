package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificateDecoding(t *testing.T) {
	t.Run("numeric issuedAt", func(t *testing.T) {
		var c Certificate
		require.NoError(t, json.Unmarshal([]byte(`{"issuedTo":"0xAA","issuedBy":"0xBB","ipfsHash":"Qm1","issuedAt":1700000000,"isRevoked":false}`), &c))
		assert.Equal(t, Timestamp(1700000000), c.IssuedAt)
		assert.Equal(t, int64(1700000000), c.IssuedTime().Unix())
	})

	t.Run("string issuedAt", func(t *testing.T) {
		var c Certificate
		require.NoError(t, json.Unmarshal([]byte(`{"issuedTo":"0xAA","ipfsHash":"Qm1","issuedAt":"1700000001","isRevoked":true}`), &c))
		assert.Equal(t, Timestamp(1700000001), c.IssuedAt)
		assert.True(t, c.IsRevoked)
	})

	t.Run("garbage issuedAt is rejected", func(t *testing.T) {
		var c Certificate
		assert.Error(t, json.Unmarshal([]byte(`{"issuedAt":"yesterday"}`), &c))
	})

	t.Run("index is not part of the wire format", func(t *testing.T) {
		b, err := json.Marshal(Certificate{IPFSHash: "Qm1", Index: 3})
		require.NoError(t, err)
		assert.NotContains(t, string(b), "Index")
	})
}
