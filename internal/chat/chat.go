package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Completer turns one user utterance into an assistant reply under the
// given system instruction. The bridge keeps no server-side conversation
// state: every turn carries its full instruction, so a persona switch
// takes effect immediately.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Close() error
}

// Options configures a provider client.
type Options struct {
	APIKey     string
	Model      string
	SocksProxy string       // optional SOCKS5 address, e.g. "127.0.0.1:1080"
	HTTPClient *http.Client // optional, overrides SocksProxy
}

// New builds the Completer for the named provider.
func New(ctx context.Context, provider string, opt Options) (Completer, error) {
	if opt.APIKey == "" {
		return nil, fmt.Errorf("%s: api key not set", provider)
	}

	if opt.HTTPClient == nil && opt.SocksProxy != "" {
		client, err := socksClient(opt.SocksProxy)
		if err != nil {
			return nil, err
		}
		opt.HTTPClient = client
	}

	switch strings.ToLower(provider) {
	case "gemini":
		return newGemini(ctx, opt)
	case "openai":
		return newOpenAI(opt), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", provider)
	}
}
