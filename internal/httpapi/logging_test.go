package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	// query param ?log=debug
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	// shorthand ?log=1
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	// header X-Log-Level
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
}

func TestSetDefaultLogLevel(t *testing.T) {
	prev := defaultLogLevel
	t.Cleanup(func() { defaultLogLevel = prev })
	SetDefaultLogLevel("error")
	if got := requestLogLevel(httptest.NewRequest("GET", "/x", nil)); got != LevelError {
		t.Fatalf("default level not applied: %v", got)
	}
}

func TestLogEnd_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	prev := zlog
	t.Cleanup(func() { zlog = prev })
	SetLogger(zerolog.New(&buf))

	r := httptest.NewRequest("POST", "/process-image", nil)
	logEnd(r, LevelInfo, http.StatusInternalServerError, time.Now(), errors.New("Failed to upload image"))
	out := buf.String()
	for _, want := range []string{`"level":"error"`, `"status":500`, `"message":"process end"`, "Failed to upload image"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}

	buf.Reset()
	logEnd(r, LevelError, http.StatusOK, time.Now(), nil)
	if buf.Len() != 0 {
		t.Fatalf("success should not be logged at error level: %q", buf.String())
	}
	logEnd(r, LevelOff, http.StatusBadRequest, time.Now(), errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("nothing should be logged when off: %q", buf.String())
	}
}
