package chainio

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExchangeAPIBuildTransactionDecodesResponse(t *testing.T) {
	want := []byte("unsigned-tx-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"swapTransaction":"` + base64.StdEncoding.EncodeToString(want) + `"}`))
	}))
	defer srv.Close()

	api := NewHTTPExchangeAPI(srv.URL)
	got, err := api.BuildTransaction(context.Background(), []byte(`[{"ammKey":"x"}]`))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHTTPExchangeAPIBuildTransactionPropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"route expired"}`))
	}))
	defer srv.Close()

	api := NewHTTPExchangeAPI(srv.URL)
	_, err := api.BuildTransaction(context.Background(), []byte(`[]`))
	assert.ErrorContains(t, err, "route expired")
}

func TestHTTPExchangeAPIBuildTransactionPropagatesHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	api := NewHTTPExchangeAPI(srv.URL)
	_, err := api.BuildTransaction(context.Background(), []byte(`[]`))
	assert.ErrorContains(t, err, "502")
}
