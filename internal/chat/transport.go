package chat

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// socksClient builds the HTTP client for setups where the cloud AI
// endpoints are only reachable through a SOCKS5 proxy.
func socksClient(addr string) (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks proxy %s: %w", addr, err)
	}

	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks proxy %s: dialer has no context support", addr)
	}

	return &http.Client{
		Transport: &http.Transport{DialContext: cd.DialContext},
		Timeout:   2 * time.Minute, // completions can be slow through a proxy
	}, nil
}
