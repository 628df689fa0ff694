package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/types"
	"github.com/ashwinyue/tracesmith/internal/testutil"
)

const samplePolicy = `# Expense Policy

All expenses over $50 require a receipt. Meals are capped at $75 per day.
Travel must be booked through the approved portal.`

// ========== Resolve 测试 ==========

func TestResolver_Resolve_Literal(t *testing.T) {
	r := NewResolver()
	policy, err := r.Resolve(context.Background(), samplePolicy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if policy.Source != samplePolicy {
		t.Errorf("Source should be the literal text")
	}
	if got := policy.Metadata[model.MetaTitle]; got != "Expense Policy" {
		t.Errorf("title = %q, want %q", got, "Expense Policy")
	}
	if policy.Metadata[model.MetaFormat] != FormatText {
		t.Errorf("format = %q", policy.Metadata[model.MetaFormat])
	}
}

func TestResolver_Resolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr error
	}{
		{name: "空文本", source: "   \n\n  ", wantErr: ErrEmptyPolicy},
		{name: "过短", source: "Receipts required.", wantErr: ErrPolicyTooShort},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.source)
			if !types.IsIngestion(err) {
				t.Fatalf("expected IngestionError, got %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolver_MinWordsDisabled(t *testing.T) {
	r := NewResolver(WithMinWords(0))
	if _, err := r.Resolve(context.Background(), "Receipts required."); err != nil {
		t.Errorf("Resolve() error = %v", err)
	}
}

func TestResolver_Resolve_Files(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name       string
		file       string
		wantFormat string
	}{
		{name: "txt", file: "policy.txt", wantFormat: FormatText},
		{name: "markdown", file: "policy.md", wantFormat: FormatMarkdown},
		{name: "未知扩展名", file: "policy.rst", wantFormat: FormatText},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(samplePolicy), 0o644); err != nil {
				t.Fatal(err)
			}
			policy, err := r.Resolve(context.Background(), path)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if policy.Source != path {
				t.Errorf("Source = %q, want %q", policy.Source, path)
			}
			if policy.Metadata[model.MetaFormat] != tt.wantFormat {
				t.Errorf("format = %q, want %q", policy.Metadata[model.MetaFormat], tt.wantFormat)
			}
			if !strings.Contains(policy.Text, "receipt") {
				t.Errorf("text not read from file: %q", policy.Text)
			}
		})
	}
}

func TestResolver_Resolve_URL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/policy.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>Refunds</title></head><body><h1>Refund Policy</h1>
<p>Customers may request a refund within 30 days of purchase with proof of payment.</p></body></html>`)
		case "/policy.txt":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, samplePolicy)
		default:
			http.NotFound(w, req)
		}
	}))
	defer ts.Close()

	r := NewResolver(WithHTTPClient(testutil.NewTestClient(ts)))

	t.Run("html", func(t *testing.T) {
		policy, err := r.Resolve(context.Background(), "https://policies.example.com/policy.html")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !strings.Contains(policy.Text, "within 30 days") {
			t.Errorf("html body not extracted: %q", policy.Text)
		}
		if strings.Contains(policy.Text, "<p>") {
			t.Errorf("html tags should be stripped: %q", policy.Text)
		}
		if policy.Metadata[model.MetaFormat] != FormatHTML {
			t.Errorf("format = %q", policy.Metadata[model.MetaFormat])
		}
	})

	t.Run("text", func(t *testing.T) {
		policy, err := r.Resolve(context.Background(), "https://policies.example.com/policy.txt")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !strings.HasPrefix(policy.Text, "# Expense Policy") {
			t.Errorf("unexpected text: %q", policy.Text)
		}
	})

	t.Run("404", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "https://policies.example.com/missing")
		if !types.IsIngestion(err) {
			t.Errorf("expected IngestionError, got %v", err)
		}
	})
}

// ========== Normalize 测试 ==========

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "CRLF", input: "a\r\nb", want: "a\nb"},
		{name: "多余空行", input: "a\n\n\n\n\nb", want: "a\n\nb"},
		{name: "行尾空白", input: "a   \nb\t", want: "a\nb"},
		{name: "首尾空白", input: "\n\n  a  \n\n", want: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTitleOf(t *testing.T) {
	if got := titleOf("\n\n## Leave Policy\nbody"); got != "Leave Policy" {
		t.Errorf("titleOf() = %q", got)
	}
	long := strings.Repeat("x", 200)
	if got := titleOf(long); len(got) != maxTitleRunes {
		t.Errorf("title should be truncated to %d, got %d", maxTitleRunes, len(got))
	}
}

// ========== Sections 测试 ==========

func TestSections(t *testing.T) {
	ctx := context.Background()

	short := model.NewPolicy(samplePolicy, "literal")
	sections, err := Sections(ctx, short, 1000)
	if err != nil {
		t.Fatalf("Sections() error = %v", err)
	}
	if len(sections) != 1 || sections[0] != samplePolicy {
		t.Errorf("short policy should be a single section, got %d", len(sections))
	}

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Section %d. Employees must follow rule number %d at all times.\n\n", i, i)
	}
	long := model.NewPolicy(sb.String(), "literal")
	sections, err = Sections(ctx, long, 300)
	if err != nil {
		t.Fatalf("Sections() error = %v", err)
	}
	if len(sections) < 2 {
		t.Errorf("expected multiple sections, got %d", len(sections))
	}
	for _, s := range sections {
		if strings.TrimSpace(s) == "" {
			t.Error("section should not be empty")
		}
	}
}
