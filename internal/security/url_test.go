package security

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestValidateAllowsPublicURLs(t *testing.T) {
	g := NewURLGuard()

	for _, u := range []string{
		"https://example.com/page",
		"http://example.com:8080/feed.xml",
		"https://8.8.8.8/resource",
	} {
		if err := g.Validate(u); err != nil {
			t.Errorf("Validate(%s) = %v; want nil", u, err)
		}
	}
}

func TestValidateBlocksUnsafeTargets(t *testing.T) {
	tests := []struct {
		url    string
		reason string
	}{
		{"ftp://example.com/file", "scheme"},
		{"file:///etc/passwd", "scheme"},
		{"http://localhost/admin", "blocked host"},
		{"http://LOCALHOST/admin", "blocked host case-insensitive"},
		{"http://metadata.google.internal/computeMetadata", "metadata host"},
		{"http://127.0.0.1:6379/", "loopback"},
		{"http://[::1]/", "ipv6 loopback"},
		{"http://10.0.0.5/", "private"},
		{"http://172.16.1.1/", "private"},
		{"http://192.168.1.1/router", "private"},
		{"http://169.254.169.254/latest/meta-data/", "cloud metadata"},
		{"http://[::ffff:127.0.0.1]/", "mapped loopback"},
		{"http://0.0.0.0/", "unspecified"},
		{"http://224.0.0.1/", "multicast"},
		{"https:///nohost", "empty hostname"},
	}

	g := NewURLGuard()
	for _, tt := range tests {
		if err := g.Validate(tt.url); err == nil {
			t.Errorf("Validate(%s) = nil; want error (%s)", tt.url, tt.reason)
		}
	}
}

func TestValidateRedirect(t *testing.T) {
	g := NewURLGuard()

	req := &http.Request{URL: &url.URL{Scheme: "http", Host: "169.254.169.254"}}
	if err := g.ValidateRedirect(req, nil); err == nil {
		t.Error("expected redirect to metadata endpoint to be blocked")
	}

	safe := &http.Request{URL: &url.URL{Scheme: "https", Host: "example.com"}}
	if err := g.ValidateRedirect(safe, nil); err != nil {
		t.Errorf("safe redirect rejected: %v", err)
	}

	if err := g.ValidateRedirect(safe, make([]*http.Request, 10)); err == nil {
		t.Error("expected redirect chain limit error")
	} else if !strings.Contains(err.Error(), "redirects") {
		t.Errorf("unexpected chain-limit error: %v", err)
	}
}
