package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptySupplierGoesDirect(t *testing.T) {
	s := NewProxySupplier(context.Background(), nil, "http://unused")

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.Get())
}

func TestSupplierKeepsHealthyProxiesInOrder(t *testing.T) {
	// A plain HTTP server accepts absolute-form proxy requests and answers 200.
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	s := NewProxySupplier(context.Background(), []string{healthy.URL, failing.URL}, "http://storefront.test/healthz")

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, healthy.URL, s.Get())
	assert.Equal(t, healthy.URL, s.Get())
}

func TestGetRoundRobin(t *testing.T) {
	s := &proxySupplier{proxies: []string{"a", "b", "c"}}

	got := []string{s.Get(), s.Get(), s.Get(), s.Get()}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
}
