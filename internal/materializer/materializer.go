package materializer

import (
	"cmp"
	"fmt"

	"github.com/nao1215/byteforge/internal/model"
)

const (
	defaultTitle       = "Unknown Vulnerability"
	defaultProbeTitle  = "Active Scan Finding"
	defaultMatchedAt   = "target"
	defaultParameter   = "N/A"
	defaultToolForDesc = "nuclei"
)

// Stager receives findings for persistence. *store.Session implements it.
type Stager interface {
	StageFinding(f model.Finding, evidence ...model.Evidence)
}

// Materialize converts the matches of result into findings with evidence
// and stages them. It returns the number of findings staged.
func Materialize(s Stager, targetID, jobID int64, result *model.ScanResult) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("materialize job %d: nil stager", jobID)
	}
	if result == nil {
		return 0, nil
	}

	for _, m := range result.Matches {
		var (
			f        model.Finding
			evidence []model.Evidence
		)
		if result.Kind == model.JobKindActiveProbe {
			f, evidence = probeFinding(m)
		} else {
			f, evidence = templateFinding(m, result.Tool)
		}
		f.TargetID = targetID
		f.JobID = jobID
		s.StageFinding(f, evidence...)
	}
	return len(result.Matches), nil
}

// templateFinding maps a recon or template-scan match.
func templateFinding(m model.Match, tool string) (model.Finding, []model.Evidence) {
	f := base(m, defaultTitle)
	f.Description = cmp.Or(m.Description, fmt.Sprintf("Detected via %s scan.", cmp.Or(tool, defaultToolForDesc)))
	f.Remediation = "Review the vulnerability at " + cmp.Or(m.MatchedAt, defaultMatchedAt)

	var evidence []model.Evidence
	if req := cmp.Or(m.CurlCommand, m.Request); req != "" {
		evidence = append(evidence, model.Evidence{Kind: model.EvidenceRequest, Data: req})
	}
	if m.Response != "" {
		evidence = append(evidence, responseEvidence(m.Response))
	}
	return f, evidence
}

// probeFinding maps an active probe match.
func probeFinding(m model.Match) (model.Finding, []model.Evidence) {
	f := base(m, defaultProbeTitle)
	f.Description = "Active scan detected: " + m.Evidence
	f.Remediation = "Parameter: " + cmp.Or(m.Parameter, defaultParameter)

	var evidence []model.Evidence
	if m.Request != "" {
		evidence = append(evidence, model.Evidence{
			Kind: model.EvidenceRequest,
			Data: fmt.Sprintf("Payload: %s\n%s", m.Payload, m.Request),
		})
	}
	if m.Response != "" {
		evidence = append(evidence, responseEvidence(m.Response))
	}
	return f, evidence
}

func base(m model.Match, defaultTitle string) model.Finding {
	cwe := model.NormalizeCWE(m.CWE)
	return model.Finding{
		Title:     cmp.Or(m.Title, defaultTitle),
		Severity:  m.Severity,
		CWE:       cwe,
		CVSS:      m.CVSS,
		CVSSScore: m.CVSSScore,
		OWASP:     cmp.Or(m.OWASP, model.OWASPForCWE(cwe)),
	}
}

func responseEvidence(body string) model.Evidence {
	return model.Evidence{Kind: model.EvidenceResponse, Data: model.Truncate(body, model.MaxEvidenceResponse)}
}
