package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogClient_Proxy_RelaysStatusBodyAndContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/widget-1/stock", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"stock":42}`))
	}))
	defer upstream.Close()

	c := NewCatalogClient(upstream.URL)
	status, body, contentType, err := c.Proxy("/products/widget-1/stock")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", contentType)
	assert.JSONEq(t, `{"stock":42}`, string(body))
}

func TestCatalogClient_Proxy_RelaysNonOKStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer upstream.Close()

	c := NewCatalogClient(upstream.URL)
	status, body, _, err := c.Proxy("/products/unknown/stock")

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"not found"}`, string(body))
}

func TestCatalogClient_Proxy_TrimsTrailingSlashFromBaseURL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	c := NewCatalogClient(upstream.URL + "/")
	status, _, _, err := c.Proxy("/products")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}
