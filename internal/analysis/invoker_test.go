package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestCommandInvoke(t *testing.T) {
	skipWithoutShell(t)

	cmd := &Command{
		Path: "/bin/sh",
		Args: []string{"-c", `grep -q '"analyzer":"ext"' && echo '{"findings":[{"category":"style","severity":"low","file":"a.go","line_start":1,"line_end":1,"message":"m"}]}'`},
	}

	findings, err := cmd.Invoke(context.Background(), View{Analyzer: "ext", ChangesetID: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 || findings[0].Analyzer != "ext" {
		t.Errorf("unexpected findings %v", findings)
	}
}

func TestCommandInvokeFailure(t *testing.T) {
	skipWithoutShell(t)

	cmd := &Command{Path: "/bin/sh", Args: []string{"-c", "echo boom >&2; exit 3"}}

	_, err := cmd.Invoke(context.Background(), View{Analyzer: "ext"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected error carrying stderr, got %v", err)
	}
}

func TestCommandInvokeMalformed(t *testing.T) {
	skipWithoutShell(t)

	cmd := &Command{Path: "/bin/sh", Args: []string{"-c", "echo '{not json'"}}

	_, err := cmd.Invoke(context.Background(), View{Analyzer: "ext"})
	if !errors.Is(err, ErrMalformedOutput) {
		t.Errorf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestCommandInvokeOutputLimit(t *testing.T) {
	skipWithoutShell(t)

	cmd := &Command{
		Path:      "/bin/sh",
		Args:      []string{"-c", `echo '{"findings":[]}'; i=0; while [ $i -lt 200 ]; do echo "padding line $i"; i=$((i+1)); done`},
		MaxOutput: 256,
	}

	_, err := cmd.Invoke(context.Background(), View{Analyzer: "ext"})
	if !errors.Is(err, ErrMalformedOutput) || !strings.Contains(err.Error(), "exceeds 256 bytes") {
		t.Errorf("expected oversized output to be rejected, got %v", err)
	}

	cmd.MaxOutput = 0
	cmd.Args = []string{"-c", `echo '{"findings":[]}'`}
	if _, err := cmd.Invoke(context.Background(), View{Analyzer: "ext"}); err != nil {
		t.Errorf("small output under the default limit failed: %v", err)
	}
}

func TestCommandInvokeTimeout(t *testing.T) {
	skipWithoutShell(t)

	cmd := &Command{Path: "/bin/sh", Args: []string{"-c", "sleep 5"}, Grace: 100 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := cmd.Invoke(ctx, View{Analyzer: "ext"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("process outlived its grace period: %s", elapsed)
	}
}

func TestHTTPInvokeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"analyzer":"remote"`) {
			http.Error(w, "bad view", http.StatusBadRequest)
			return
		}
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"findings":[{"category":"style","severity":"medium","file":"a.go","message":"m"}]}`)
	}))
	defer srv.Close()

	h := &HTTP{URL: srv.URL, Delay: time.Millisecond}
	findings, err := h.Invoke(context.Background(), View{Analyzer: "remote"})
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 {
		t.Errorf("expected 1 finding, got %v", findings)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestHTTPInvokeUnrecoverable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusUnprocessableEntity)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "findings: [")
			},
			wantErr: ErrMalformedOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			h := &HTTP{URL: srv.URL, Attempts: 3, Delay: time.Millisecond}
			_, err := h.Invoke(context.Background(), View{Analyzer: "remote"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if got := calls.Load(); got != 1 {
				t.Errorf("expected no retries, got %d calls", got)
			}
		})
	}
}
