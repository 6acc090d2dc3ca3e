// Package probe runs active security tests against the query parameters of
// web endpoints: reflected XSS, SQL injection, path traversal, SSRF, open
// redirect and header injection, in that order. SSRF and header injection
// are placeholders that report nothing.
//
// Only use against targets you are authorized to test.
package probe
