// Package crawler discovers the URLs of a web application.
//
// The Crawler runs katana and falls back to gospider when katana is not
// installed. An optional in-process Spider takes over when neither binary is
// available; without one a simulated result labelled "simulated" is
// returned. Discovered URLs are deduplicated, filtered to the target's scope
// and categorized by CategorizeURLs.
//
// # Usage
//
//	c := crawler.New(runner, crawler.WithSpider(crawler.NewSpider(nil)))
//	result := c.Run(ctx, jobID, "https://example.com", 3, nil)
package crawler
