package probe

import (
	"context"
	"io"
	"net/http"
)

// response is the part of an HTTP response the probe modules inspect.
type response struct {
	status int
	header http.Header
	body   string
}

// get performs one paced GET request with the per-request timeout.
// follow selects whether redirects are followed.
func (p *Prober) get(ctx context.Context, rawURL string, follow bool) (*response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; byteforge/1.0)")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	client := p.client
	if !follow {
		client = p.noFollow
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: string(body)}, nil
}
