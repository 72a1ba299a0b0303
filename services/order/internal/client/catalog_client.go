package client

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// CatalogClient forwards the coordinator's read-only /products routes to
// an external product-catalog service (§6): "proxy to catalog,
// pass-through". The catalog service itself is out of scope (§1); this
// client only forwards the request path and copies back whatever status
// and body the catalog returns.
type CatalogClient struct {
	baseURL string
	http    *http.Client
}

// NewCatalogClient builds a CatalogClient targeting baseURL (e.g.
// "http://catalog:8090"), trimmed of any trailing slash.
func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Proxy forwards path (e.g. "/products" or "/products/widget-1/stock") to
// the catalog service and returns its status code, body, and content
// type verbatim, so the HTTP handler can relay the response unchanged.
func (c *CatalogClient) Proxy(path string) (statusCode int, body []byte, contentType string, err error) {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", err
	}
	return resp.StatusCode, data, resp.Header.Get("Content-Type"), nil
}
