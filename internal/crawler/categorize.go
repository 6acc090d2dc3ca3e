package crawler

import (
	"net/url"
	"strings"
)

// Categories groups crawled URLs by what they most likely are.
type Categories struct {
	Endpoints    []string
	JSFiles      []string
	APIEndpoints []string
	Forms        []string
	Parameters   []string
}

// apiMarkers identify API paths.
var apiMarkers = []string{"/api/", "/v1/", "/v2/", "/graphql"}

// formMarkers identify paths that usually host an input form.
var formMarkers = []string{"login", "register", "signup", "contact", "search", "upload"}

// CategorizeURLs assigns each URL to exactly one category. Rules are applied
// in order on the lower-cased path: a .js suffix, an API marker, a form
// marker, a non-empty query string, and otherwise a plain endpoint.
func CategorizeURLs(urls []string) Categories {
	c := Categories{
		Endpoints:    make([]string, 0),
		JSFiles:      make([]string, 0),
		APIEndpoints: make([]string, 0),
		Forms:        make([]string, 0),
		Parameters:   make([]string, 0),
	}

	for _, raw := range urls {
		var path, query string
		if u, err := url.Parse(raw); err == nil {
			path = strings.ToLower(u.Path)
			query = u.RawQuery
		}

		switch {
		case strings.HasSuffix(path, ".js"):
			c.JSFiles = append(c.JSFiles, raw)
		case containsAny(path, apiMarkers):
			c.APIEndpoints = append(c.APIEndpoints, raw)
		case containsAny(path, formMarkers):
			c.Forms = append(c.Forms, raw)
		case query != "":
			c.Parameters = append(c.Parameters, raw)
		default:
			c.Endpoints = append(c.Endpoints, raw)
		}
	}
	return c
}

// Dedupe removes repeated and blank URLs, keeping first-seen order.
func Dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// FilterScope keeps URLs whose host equals a scope entry or is a subdomain
// of one. Scope entries may be bare hosts, "*.host" wildcards or URLs.
// An empty scope keeps everything.
func FilterScope(urls []string, scope []string) []string {
	if len(scope) == 0 {
		return urls
	}

	hosts := make([]string, 0, len(scope))
	for _, s := range scope {
		if h := scopeHost(s); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return urls
	}

	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		for _, h := range hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				out = append(out, raw)
				break
			}
		}
	}
	return out
}

func scopeHost(entry string) string {
	entry = strings.ToLower(strings.TrimSpace(entry))
	entry = strings.TrimPrefix(entry, "*.")
	if strings.Contains(entry, "://") {
		if u, err := url.Parse(entry); err == nil {
			return u.Hostname()
		}
		return ""
	}
	if i := strings.IndexAny(entry, "/:"); i >= 0 {
		entry = entry[:i]
	}
	return entry
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
