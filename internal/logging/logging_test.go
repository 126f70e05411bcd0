package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger
	return buf.String()
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		format    Format
		wantDebug bool
		wantWarn  bool
	}{
		{name: "debug level JSON format", level: LevelDebug, format: FormatJSON, wantDebug: true, wantWarn: true},
		{name: "warn level JSON format", level: LevelWarn, format: FormatJSON, wantWarn: true},
		{name: "info level text format", level: LevelInfo, format: FormatText, wantWarn: true},
		{name: "unknown level falls back to info", level: Level(999), format: FormatJSON, wantWarn: true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if got := slog.Default().Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := slog.Default().Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
	InitLogger(LevelInfo, FormatJSON)
}

func TestInitLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerWithWriter(&buf, LevelWarn, FormatText)
	defer InitLogger(LevelInfo, FormatJSON)

	ctx := context.Background()
	InfoContext(ctx, "hidden")
	WarnContext(ctx, "shown", "key", "value")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("Info should be filtered at warn level")
	}
	if !strings.Contains(output, "shown") || !strings.Contains(output, "key=value") {
		t.Errorf("unexpected output %q", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if got, err := ParseFormat("text"); err != nil || got != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", got, err)
	}
	if got, err := ParseFormat(""); err != nil || got != FormatJSON {
		t.Errorf("ParseFormat(\"\") = %v, %v", got, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestAssemblyID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "Context with assembly ID",
			ctx:      WithAssemblyID(context.Background(), "test-id"),
			expected: "test-id",
		},
		{
			name:     "Context without assembly ID",
			ctx:      context.Background(),
			expected: "",
		},
		{
			name:     "Context with wrong type value",
			ctx:      context.WithValue(context.Background(), AssemblyIDKey, 12345),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetAssemblyID(tt.ctx); got != tt.expected {
				t.Errorf("GetAssemblyID() = %q, want %q", got, tt.expected)
			}
		})
	}

	if a, b := NewAssemblyID(), NewAssemblyID(); a == "" || a == b {
		t.Errorf("NewAssemblyID() should return distinct ids, got %q and %q", a, b)
	}
}

func TestContextLoggingAddsAssemblyID(t *testing.T) {
	ctx := WithAssemblyID(context.Background(), "asm-1")
	output := captureLogOutput(func() {
		DebugContext(ctx, "debug message")
		InfoContext(ctx, "info message")
		WarnContext(ctx, "warn message")
		ErrorContext(ctx, "error message")
	})
	if got := strings.Count(output, `"assembly_id":"asm-1"`); got != 4 {
		t.Errorf("assembly_id appeared %d times, want 4:\n%s", got, output)
	}
}

func TestConversionError(t *testing.T) {
	output := captureLogOutput(func() {
		ConversionError(context.Background(), "apbio-ch03-ex002", `\text{H}_2O`, "invalid markup", errors.New("invalid entity"))
	})
	for _, want := range []string{
		`Error converting math in apbio-ch03-ex002:`,
		`math: \\text{H}_2O`,
		`mathml: invalid markup`,
		`"level":"ERROR"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output %s\nmissing %s", output, want)
		}
	}
}

func TestMissingExercise(t *testing.T) {
	output := captureLogOutput(func() {
		MissingExercise(context.Background(), "nosuchtag", "#ost/api/ex/nosuchtag")
	})
	if !strings.Contains(output, `"level":"WARN"`) || !strings.Contains(output, `"tag":"nosuchtag"`) {
		t.Errorf("unexpected output %s", output)
	}
}

func TestPipelineStage(t *testing.T) {
	output := captureLogOutput(func() {
		PipelineStage(context.Background(), "exercises", 3, 20*time.Millisecond)
	})
	if !strings.Contains(output, `"rule":"exercises"`) || !strings.Contains(output, `"matches":3`) {
		t.Errorf("unexpected output %s", output)
	}
}

func TestTransport(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	ctx := WithAssemblyID(context.Background(), "asm-42")

	output := captureLogOutput(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/exercises", nil)
		if err != nil {
			t.Fatalf("NewRequest failed: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		resp.Body.Close()
	})

	if gotHeader != "asm-42" {
		t.Errorf("X-Request-ID = %q, want %q", gotHeader, "asm-42")
	}
	for _, want := range []string{`"msg":"http_request"`, `"status_code":418`, `"method":"GET"`, `"assembly_id":"asm-42"`} {
		if !strings.Contains(output, want) {
			t.Errorf("output %s\nmissing %s", output, want)
		}
	}
}

func TestTransportError(t *testing.T) {
	failing := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	client := &http.Client{Transport: &Transport{Base: failing}}

	output := captureLogOutput(func() {
		_, err := client.Get("http://exercises.invalid/x")
		if err == nil {
			t.Error("expected error")
		}
	})
	if !strings.Contains(output, "http_request_failed") {
		t.Errorf("output %s missing failure log", output)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
