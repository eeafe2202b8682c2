package gateway

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/rs/zerolog"
	"github.com/zeebo/assert"
)

func TestWriteErrorDeduplicatesRepeatedFaults(t *testing.T) {
	var buf bytes.Buffer
	prev := log
	log = zerolog.New(&buf)
	t.Cleanup(func() { log = prev })

	h := NewHandlers(nil, nil, nil, nil)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.writeError(rec, walleterr.New(walleterr.NetworkError, "mainnet node unreachable"))
		// Every caller still gets the full error payload.
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "network_error"))
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "mainnet node unreachable"))

	// A different failure is not suppressed.
	rec := httptest.NewRecorder()
	h.writeError(rec, walleterr.New(walleterr.NetworkError, "testnet node unreachable"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1, strings.Count(buf.String(), "testnet node unreachable"))
}
