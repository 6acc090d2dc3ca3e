package vulnscan

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/toolexec"
)

// defaultTitle names a match whose template carries no name.
const defaultTitle = "Unknown Vulnerability"

// nucleiInfo is the template metadata block of a nuclei result.
type nucleiInfo struct {
	Name           string          `json:"name"`
	Severity       string          `json:"severity"`
	Description    string          `json:"description"`
	Reference      json.RawMessage `json:"reference"`
	Classification json.RawMessage `json:"classification"`
}

type nucleiClassification struct {
	CWEID       json.RawMessage `json:"cwe-id"`
	CVSSMetrics json.RawMessage `json:"cvss-metrics"`
	CVSSScore   json.RawMessage `json:"cvss-score"`
}

// ParseOutput converts nuclei JSONL into matches. Lines that are not JSON
// objects are skipped; a malformed info block is treated as empty.
// A missing matched-at falls back to target.
func ParseOutput(data []byte, target string) []model.Match {
	matches := make([]model.Match, 0)

	for _, line := range toolexec.Lines(data) {
		var rec map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec == nil {
			continue
		}

		var info nucleiInfo
		if raw, ok := rec["info"]; ok {
			if err := json.Unmarshal(raw, &info); err != nil {
				info = nucleiInfo{}
			}
		}

		title := info.Name
		if title == "" {
			title = defaultTitle
		}
		severity := info.Severity
		if severity == "" {
			severity = "info"
		}

		class := classification(info.Classification)
		matchedAt := stringField(rec, "matched-at")
		if matchedAt == "" {
			matchedAt = target
		}

		matches = append(matches, model.Match{
			Title:       title,
			Severity:    model.SeverityOrInfo(severity),
			CWE:         class.cwe,
			CVSS:        class.metrics,
			CVSSScore:   class.score,
			OWASP:       model.OWASPForCWE(class.cwe),
			TemplateID:  stringField(rec, "template-id"),
			MatchedAt:   matchedAt,
			Description: info.Description,
			References:  stringList(info.Reference),
			CurlCommand: stringField(rec, "curl-command"),
			Request:     stringField(rec, "request"),
			Response:    model.Truncate(stringField(rec, "response"), model.MaxEvidenceResponse),
		})
	}
	return matches
}

// classified is the part of a template classification kept on a match.
type classified struct {
	cwe     string
	metrics string
	score   float64
}

// classification extracts the first CWE id, the CVSS vector and the CVSS
// base score. cwe-id may be a list, a scalar or absent; cvss-score may be a
// number or a string.
func classification(raw json.RawMessage) classified {
	var out classified
	if len(raw) == 0 {
		return out
	}
	var c nucleiClassification
	if err := json.Unmarshal(raw, &c); err != nil {
		return out
	}

	if ids := stringList(c.CWEID); len(ids) > 0 {
		out.cwe = model.NormalizeCWE(ids[0])
	}
	if vectors := stringList(c.CVSSMetrics); len(vectors) > 0 {
		out.metrics = strings.TrimSpace(vectors[0])
	}
	if len(c.CVSSScore) > 0 {
		if err := json.Unmarshal(c.CVSSScore, &out.score); err != nil {
			var s string
			if json.Unmarshal(c.CVSSScore, &s) == nil {
				out.score = parseScore(s)
			}
		}
	}
	return out
}

// stringList decodes a JSON string or list of strings. Other values yield nil.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return []string{num.String()}
	}
	return nil
}

// stringField returns rec[key] when it is a JSON string, else "".
func stringField(rec map[string]json.RawMessage, key string) string {
	raw, ok := rec[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func parseScore(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
