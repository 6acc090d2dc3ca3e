package model

import "strings"

// cweToOWASP maps common weakness identifiers to OWASP Top 10 2021 categories.
var cweToOWASP = map[string]string{
	"CWE-22":  "A01:2021 - Broken Access Control",
	"CWE-200": "A01:2021 - Broken Access Control",
	"CWE-601": "A01:2021 - Broken Access Control",
	"CWE-312": "A02:2021 - Cryptographic Failures",
	"CWE-319": "A02:2021 - Cryptographic Failures",
	"CWE-79":  "A03:2021 - Injection",
	"CWE-89":  "A03:2021 - Injection",
	"CWE-93":  "A03:2021 - Injection",
	"CWE-113": "A03:2021 - Injection",
	"CWE-16":  "A05:2021 - Security Misconfiguration",
	"CWE-937": "A06:2021 - Vulnerable and Outdated Components",
	"CWE-287": "A07:2021 - Identification and Authentication Failures",
	"CWE-918": "A10:2021 - Server-Side Request Forgery",
}

// NormalizeCWE returns cwe in "CWE-<n>" form. Bare numbers and lower-case
// prefixes are accepted; anything else is returned trimmed.
func NormalizeCWE(cwe string) string {
	cwe = strings.TrimSpace(cwe)
	if cwe == "" {
		return ""
	}
	upper := strings.ToUpper(cwe)
	if strings.HasPrefix(upper, "CWE-") {
		return upper
	}
	if strings.Trim(cwe, "0123456789") == "" {
		return "CWE-" + cwe
	}
	return cwe
}

// OWASPForCWE returns the OWASP Top 10 category for cwe, or "" when unknown.
func OWASPForCWE(cwe string) string {
	return cweToOWASP[NormalizeCWE(cwe)]
}
