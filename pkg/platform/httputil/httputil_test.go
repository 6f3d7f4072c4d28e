package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "eduverify/pkg/domain-errors"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{"internal hides detail", dErrors.New(dErrors.CodeInternal, "db failed"), http.StatusInternalServerError, "internal_error", ""},
		{"uncoded error is internal", assert.AnError, http.StatusInternalServerError, "internal_error", ""},
		{"already revoked", dErrors.New(dErrors.CodeConflict, "certificate already revoked"), http.StatusConflict, "conflict", "certificate already revoked"},
		{"unknown student", dErrors.New(dErrors.CodeNotFound, "student not registered"), http.StatusNotFound, "not_found", "student not registered"},
		{"registry down", dErrors.New(dErrors.CodeUnavailable, "registry unreachable"), http.StatusBadGateway, "unavailable", "registry unreachable"},
		{"bad address", dErrors.New(dErrors.CodeInvalidInput, "invalid student address"), http.StatusBadRequest, "invalid_input", "invalid student address"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decodeError(t, w)
			assert.Equal(t, tc.code, body.Error)
			assert.Equal(t, tc.description, body.Description)
		})
	}
}

type hashRequest struct {
	Hash string `json:"hash"`
}

func (r *hashRequest) Validate() error {
	if strings.TrimSpace(r.Hash) == "" {
		return dErrors.New(dErrors.CodeValidation, "hash is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	decode := func(body string) (*hashRequest, *httptest.ResponseRecorder, bool) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req, ok := DecodeAndPrepare[hashRequest](w, r, logger, context.Background(), "req-1")
		return req, w, ok
	}

	t.Run("valid body", func(t *testing.T) {
		req, _, ok := decode(`{"hash":"QmAbc"}`)
		require.True(t, ok)
		assert.Equal(t, "QmAbc", req.Hash)
	})

	t.Run("malformed json", func(t *testing.T) {
		req, w, ok := decode(`{"hash":`)
		assert.False(t, ok)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w).Error)
	})

	t.Run("fails validation", func(t *testing.T) {
		_, w, ok := decode(`{"hash":"  "}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeError(t, w).Error)
	})
}
