package recon

import (
	"context"
	"fmt"
	"time"

	mdns "github.com/miekg/dns"
)

// DefaultResolverTimeout bounds one DNS exchange.
const DefaultResolverTimeout = 3 * time.Second

// Resolver looks up A records for discovered subdomains against one DNS server.
type Resolver struct {
	server string
	client *mdns.Client
}

// NewResolver creates a Resolver that queries server ("host:port").
func NewResolver(server string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolverTimeout
	}
	return &Resolver{
		server: server,
		client: &mdns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupA returns the IPv4 addresses of host. A name with no A records
// yields an empty slice and no error.
func (r *Resolver) LookupA(ctx context.Context, host string) ([]string, error) {
	msg := new(mdns.Msg)
	msg.SetQuestion(mdns.Fqdn(host), mdns.TypeA)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns exchange for %s: %w", host, err)
	}
	if resp.Rcode == mdns.RcodeNameError {
		return []string{}, nil
	}
	if resp.Rcode != mdns.RcodeSuccess {
		return nil, fmt.Errorf("dns error for %s: %s", host, mdns.RcodeToString[resp.Rcode])
	}

	addrs := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if a, ok := rr.(*mdns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	return addrs, nil
}
