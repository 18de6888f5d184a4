package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// ProxySupplier hands out outbound proxies for the storefront REST clients
type ProxySupplier interface {
	// Get returns the next proxy URL, or "" when requests should go direct
	Get() string
	Len() int
}

type proxySupplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewProxySupplier probes every proxy against healthURL and keeps the ones that answer.
// An empty list yields a supplier that always returns "".
func NewProxySupplier(ctx context.Context, proxies []string, healthURL string) ProxySupplier {
	if len(proxies) == 0 {
		return &proxySupplier{proxies: []string{}}
	}

	log.Infof("🔄 Probing %d proxies against %s...", len(proxies), healthURL)

	healthy := make([]bool, len(proxies))
	semaphore := make(chan struct{}, 16)

	var wg sync.WaitGroup
	for i, proxyURL := range proxies {
		wg.Add(1)

		go func(index int, proxyURL string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			healthy[index] = probe(ctx, proxyURL, healthURL)
		}(i, proxyURL)
	}
	wg.Wait()

	// Keep configuration order so rotation is predictable
	valid := make([]string, 0, len(proxies))
	for i, proxyURL := range proxies {
		if healthy[i] {
			valid = append(valid, proxyURL)
		} else {
			log.Warnf("❌ Proxy %s failed health probe, skipping", proxyURL)
		}
	}

	log.Infof("✅ ProxySupplier initialized with %d of %d proxies", len(valid), len(proxies))

	return &proxySupplier{proxies: valid}
}

// Get returns the next proxy URL in round-robin fashion
func (p *proxySupplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxyURL := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)

	return proxyURL
}

func (p *proxySupplier) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.proxies)
}

func probe(ctx context.Context, proxyURL, healthURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(healthURL)
	if err != nil {
		log.Debugf("Proxy probe failed for %s: %v", proxyURL, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Proxy probe failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}

	return true
}
