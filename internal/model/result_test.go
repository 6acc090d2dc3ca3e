package model

import (
	"encoding/json"
	"testing"
)

// TestIsSimulated tests simulated tool detection.
func TestIsSimulated(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		tool string
		want bool
	}{
		{"subfinder", false},
		{SimulatedTool("subfinder"), true},
		{"nuclei (simulated)", true},
		{"simulated", true},
		{"katana", false},
	}

	for _, tc := range testCases {
		t.Run(tc.tool, func(t *testing.T) {
			t.Parallel()
			if got := IsSimulated(tc.tool); got != tc.want {
				t.Errorf("IsSimulated(%q) = %v", tc.tool, got)
			}
		})
	}
}

// TestResultStatusIsFailure tests failure classification.
func TestResultStatusIsFailure(t *testing.T) {
	t.Parallel()

	if ResultCompleted.IsFailure() {
		t.Error("completed is not a failure")
	}
	for _, s := range []ResultStatus{ResultTimeout, ResultError, ResultToolNotFound} {
		if !s.IsFailure() {
			t.Errorf("%s should be a failure", s)
		}
	}
}

// TestScanResultMarshalJSON tests the flattened job log encoding.
func TestScanResultMarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("details fields are flattened", func(t *testing.T) {
		t.Parallel()

		result := &ScanResult{
			JobID:  7,
			Kind:   JobKindRecon,
			Status: ResultCompleted,
			Tool:   SimulatedTool("subfinder"),
			Note:   "install subfinder",
			Details: &ReconDetails{
				Domain:     "example.com",
				Subdomains: []string{"api.example.com"},
				FoundCount: 1,
			},
		}

		data, err := json.Marshal(result)
		if err != nil {
			t.Fatal(err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatal(err)
		}

		for key, want := range map[string]any{
			"status":      "completed",
			"tool":        "subfinder (simulated)",
			"kind":        "recon",
			"domain":      "example.com",
			"found_count": float64(1),
			"note":        "install subfinder",
		} {
			if decoded[key] != want {
				t.Errorf("%s: got %v, want %v", key, decoded[key], want)
			}
		}
		if _, ok := decoded["error"]; ok {
			t.Error("empty error should be omitted")
		}
	})

	t.Run("composite embeds sub-results by kind", func(t *testing.T) {
		t.Parallel()

		recon := &ScanResult{Kind: JobKindRecon, Status: ResultCompleted, Tool: "subfinder"}
		result := &ScanResult{
			Kind:   JobKindComposite,
			Status: ResultCompleted,
			Tool:   "composite",
			Details: &CompositeDetails{
				Phases:        []PhaseSummary{{Kind: JobKindRecon, Tool: "subfinder", Status: ResultCompleted, FindingsCount: 5}},
				Results:       map[JobKind]*ScanResult{JobKindRecon: recon},
				Summary:       "done",
				FindingsCount: 5,
			},
		}

		data, err := json.Marshal(result)
		if err != nil {
			t.Fatal(err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatal(err)
		}

		sub, ok := decoded["recon"].(map[string]any)
		if !ok {
			t.Fatalf("expected nested recon result, got %v", decoded["recon"])
		}
		if sub["tool"] != "subfinder" {
			t.Errorf("nested tool: got %v", sub["tool"])
		}
		if decoded["findings_count"] != float64(5) {
			t.Errorf("findings_count: got %v", decoded["findings_count"])
		}
		if decoded["summary"] != "done" {
			t.Errorf("summary: got %v", decoded["summary"])
		}
	})
}
