package config

import "maps"

// ScanProfile holds per-target scan overrides.
type ScanProfile struct {
	// CrawlDepth overrides the global crawl depth. Zero keeps the global value.
	CrawlDepth int `yaml:"crawl_depth,omitempty"`

	// Templates overrides the template scanner tags.
	Templates string `yaml:"templates,omitempty"`

	// Endpoints are additional URLs the active probe tests besides the target.
	Endpoints []string `yaml:"endpoints,omitempty"`

	// Headers are sent with every active probe request.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Profiles maps target hosts to their scan profile.
type Profiles struct {
	// Defaults apply to every target unless overridden.
	Defaults ScanProfile `yaml:"defaults,omitempty"`

	// Targets is keyed by host name (no scheme, no port).
	Targets map[string]ScanProfile `yaml:"targets,omitempty"`
}

// NewProfiles returns an empty profile set.
func NewProfiles() *Profiles {
	return &Profiles{Targets: make(map[string]ScanProfile)}
}

// Get returns the merged profile for host: defaults overlaid with the
// host-specific entry. A nil receiver yields an empty profile.
func (p *Profiles) Get(host string) ScanProfile {
	if p == nil {
		return ScanProfile{}
	}

	result := p.Defaults
	result.Headers = maps.Clone(p.Defaults.Headers)

	override, ok := p.Targets[host]
	if !ok {
		return result
	}

	if override.CrawlDepth != 0 {
		result.CrawlDepth = override.CrawlDepth
	}
	if override.Templates != "" {
		result.Templates = override.Templates
	}
	if len(override.Endpoints) > 0 {
		result.Endpoints = override.Endpoints
	}
	if len(override.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(override.Headers))
		}
		maps.Copy(result.Headers, override.Headers)
	}

	return result
}
