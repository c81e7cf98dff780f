package httpapi

import (
	"context"
	"crypto/tls"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	// set to a cancelable ctx
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetBaseContext(ctx)
	// now reset with nil
	// nolint:staticcheck // SA1012: this test intentionally passes nil to verify fallback behavior
	SetBaseContext(nil)
	// join with a short-lived context and ensure cancel triggers
	a, ac := context.WithCancel(context.Background())
	defer ac()
	b, bc := context.WithCancel(context.Background())
	defer bc()
	j, cancelJ := joinContexts(a, b)
	defer cancelJ()
	ac() // cancel a
	select {
	case <-j.Done():
		// ok
	case <-time.After(500 * time.Millisecond):
		t.Fatal("joined context did not cancel after parent canceled")
	}
}

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	a, ac := context.WithCancel(context.Background())
	b, bc := context.WithCancel(context.Background())
	defer bc()
	j, cancelJ := joinContexts(a, b)
	defer cancelJ()
	// cancel A and expect joined canceled
	ac()
	select {
	case <-j.Done():
		// ok
	case <-time.After(500 * time.Millisecond):
		t.Fatal("joined context did not cancel when first parent canceled")
	}
}

func TestJoinContexts_KeepsRequestValues(t *testing.T) {
	type key struct{}
	b := context.WithValue(context.Background(), key{}, "v")
	j, cancel := joinContexts(context.Background(), b)
	defer cancel()
	if got := j.Value(key{}); got != "v" {
		t.Fatalf("value lost: %v", got)
	}
}

func TestRequestBaseURL(t *testing.T) {
	r := httptest.NewRequest("POST", "http://api.local:8000/process-image", nil)
	if got := requestBaseURL(r); got != "http://api.local:8000" {
		t.Fatalf("plain: %q", got)
	}
	r.TLS = &tls.ConnectionState{}
	if got := requestBaseURL(r); got != "https://api.local:8000" {
		t.Fatalf("tls: %q", got)
	}
	r = httptest.NewRequest("POST", "http://10.0.0.5/process-image", nil)
	r.Header.Set("X-Forwarded-Proto", "HTTPS, http")
	r.Header.Set("X-Forwarded-Host", "images.example.com")
	if got := requestBaseURL(r); got != "http://10.0.0.5" {
		t.Fatalf("forwarded headers must be ignored by default: %q", got)
	}

	SetTrustForwardedHeaders(true)
	t.Cleanup(func() { SetTrustForwardedHeaders(false) })
	if got := requestBaseURL(r); got != "https://images.example.com" {
		t.Fatalf("forwarded: %q", got)
	}
	r.Header.Set("X-Forwarded-Proto", "gopher")
	if got := requestBaseURL(r); got != "http://images.example.com" {
		t.Fatalf("bogus proto should be ignored: %q", got)
	}
}
