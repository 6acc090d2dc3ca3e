package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"testing"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/nao1215/byteforge/internal/log"
	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/toolexec"
)

// fakeExecutor returns canned output or an error.
type fakeExecutor struct {
	stdout string
	err    error
	args   []string
}

func (f *fakeExecutor) Run(_ context.Context, _ time.Duration, name string, args ...string) (*toolexec.Result, error) {
	f.args = append([]string{name}, args...)
	if f.err != nil {
		return nil, f.err
	}
	return &toolexec.Result{Stdout: []byte(f.stdout)}, nil
}

// TestScannerRun tests recon outcomes for each tool state.
func TestScannerRun(t *testing.T) {
	t.Parallel()

	t.Run("parses subfinder output", func(t *testing.T) {
		t.Parallel()

		exec := &fakeExecutor{stdout: `{"host":"www.example.com","source":"crtsh"}
not json
{"host":"API.example.com"}
{"host":"www.example.com"}
{"other":"field"}
`}
		s := NewScanner(exec, WithLogger(log.Discard()))

		result := s.Run(context.Background(), 1, "https://Example.com/path")

		if result.Status != model.ResultCompleted {
			t.Fatalf("expected completed, got %s", result.Status)
		}
		if result.Tool != "subfinder" {
			t.Errorf("expected real tool label, got %q", result.Tool)
		}
		wantArgs := []string{"subfinder", "-d", "example.com", "-silent", "-json"}
		if !reflect.DeepEqual(exec.args, wantArgs) {
			t.Errorf("args: got %v, want %v", exec.args, wantArgs)
		}

		details, ok := result.Details.(*model.ReconDetails)
		if !ok {
			t.Fatalf("unexpected details type %T", result.Details)
		}
		want := []string{"www.example.com", "api.example.com"}
		if !reflect.DeepEqual(details.Subdomains, want) {
			t.Errorf("subdomains: got %v, want %v", details.Subdomains, want)
		}
		if details.FoundCount != 2 || len(result.Matches) != 2 {
			t.Errorf("expected 2 results, got %d / %d", details.FoundCount, len(result.Matches))
		}
		if details.Apex != "example.com" {
			t.Errorf("apex: got %q", details.Apex)
		}
	})

	t.Run("tool absent yields simulated result", func(t *testing.T) {
		t.Parallel()

		s := NewScanner(&fakeExecutor{err: fmt.Errorf("%w: subfinder", toolexec.ErrToolNotFound)}, WithLogger(log.Discard()))
		result := s.Run(context.Background(), 2, "example.com")

		if result.Status != model.ResultCompleted {
			t.Fatalf("expected completed, got %s", result.Status)
		}
		if !result.Simulated() {
			t.Errorf("expected simulated tool label, got %q", result.Tool)
		}
		if result.Note == "" {
			t.Error("expected install note")
		}
		details := result.Details.(*model.ReconDetails)
		want := []string{"api.example.com", "dev.example.com", "auth.example.com", "mail.example.com", "admin.example.com"}
		if !reflect.DeepEqual(details.Subdomains, want) {
			t.Errorf("got %v", details.Subdomains)
		}
		if len(result.Matches) != 5 {
			t.Errorf("expected 5 matches, got %d", len(result.Matches))
		}
		for _, m := range result.Matches {
			if m.Severity != model.SeverityInfo {
				t.Errorf("expected info severity, got %v", m.Severity)
			}
		}
	})

	t.Run("timeout is reported", func(t *testing.T) {
		t.Parallel()

		s := NewScanner(&fakeExecutor{err: fmt.Errorf("%w: subfinder after 2m0s", toolexec.ErrToolTimeout)}, WithLogger(log.Discard()))
		result := s.Run(context.Background(), 3, "example.com")

		if result.Status != model.ResultTimeout {
			t.Errorf("expected timeout, got %s", result.Status)
		}
		if len(result.Matches) != 0 {
			t.Error("timeout must not produce matches")
		}
	})

	t.Run("other tool errors fall back to simulation", func(t *testing.T) {
		t.Parallel()

		s := NewScanner(&fakeExecutor{err: errors.New("exec format error")}, WithLogger(log.Discard()))
		result := s.Run(context.Background(), 4, "example.com")
		if !result.Simulated() || result.Status != model.ResultCompleted {
			t.Errorf("expected simulated completed result, got %s %q", result.Status, result.Tool)
		}
	})
}

// TestNormalizeDomain tests target normalisation.
func TestNormalizeDomain(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"https://Example.com", "example.com"},
		{"http://example.com:8080/path?q=1", "example.com"},
		{"example.com:443", "example.com"},
		{"example.com/path", "example.com"},
		{" sub.example.co.uk. ", "sub.example.co.uk"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeDomain(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// TestApex tests registrable domain extraction.
func TestApex(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"api.example.com":   "example.com",
		"a.b.example.co.uk": "example.co.uk",
		"example.com":       "example.com",
		"com":               "com",
	}
	for in, want := range testCases {
		if got := Apex(in); got != want {
			t.Errorf("Apex(%q) = %q, want %q", in, got, want)
		}
	}
}

// startDNSServer serves fixed A records on a random UDP port.
func startDNSServer(t *testing.T, records map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	server := &mdns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: mdns.HandlerFunc(func(w mdns.ResponseWriter, req *mdns.Msg) {
			resp := new(mdns.Msg)
			resp.SetReply(req)
			name := req.Question[0].Name
			if ip, ok := records[name]; ok {
				resp.Answer = append(resp.Answer, &mdns.A{
					Hdr: mdns.RR_Header{Name: name, Rrtype: mdns.TypeA, Class: mdns.ClassINET, Ttl: 60},
					A:   net.ParseIP(ip),
				})
			} else {
				resp.Rcode = mdns.RcodeNameError
			}
			_ = w.WriteMsg(resp)
		}),
	}
	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

// TestScannerResolves tests DNS resolution of real-tool results.
func TestScannerResolves(t *testing.T) {
	t.Parallel()

	addr := startDNSServer(t, map[string]string{"www.example.com.": "192.0.2.10"})
	exec := &fakeExecutor{stdout: "{\"host\":\"www.example.com\"}\n{\"host\":\"gone.example.com\"}\n"}
	s := NewScanner(exec, WithResolver(NewResolver(addr, time.Second)), WithLogger(log.Discard()))

	result := s.Run(context.Background(), 1, "example.com")
	details := result.Details.(*model.ReconDetails)

	if got := details.Resolved["www.example.com"]; !reflect.DeepEqual(got, []string{"192.0.2.10"}) {
		t.Errorf("www: got %v", got)
	}
	if got, ok := details.Resolved["gone.example.com"]; !ok || len(got) != 0 {
		t.Errorf("NXDOMAIN host should resolve to empty list, got %v (present=%v)", got, ok)
	}
}
