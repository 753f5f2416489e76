package httpclient

import (
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	client := New(30 * time.Second)

	if client == nil {
		t.Fatal("New returned nil")
	}

	if client.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", client.Timeout)
	}

	if client.maxRedirects != 10 {
		t.Errorf("Expected maxRedirects 10, got %d", client.maxRedirects)
	}

	if !client.blockPrivateIP {
		t.Error("Expected blockPrivateIP to be true")
	}
}

func TestValidateURL(t *testing.T) {
	client := New(30 * time.Second)

	tests := []struct {
		name        string
		url         string
		shouldErr   bool
		errContains string
	}{
		{
			name:      "Valid HTTPS URL",
			url:       "https://example.com/doc.pdf",
			shouldErr: false,
		},
		{
			name:      "Valid HTTP URL",
			url:       "http://example.com",
			shouldErr: false,
		},
		{
			name:        "File scheme blocked",
			url:         "file:///etc/passwd",
			shouldErr:   true,
			errContains: "scheme",
		},
		{
			name:        "FTP scheme blocked",
			url:         "ftp://example.com",
			shouldErr:   true,
			errContains: "scheme",
		},
		{
			name:        "Localhost blocked",
			url:         "http://localhost/admin",
			shouldErr:   true,
			errContains: "localhost",
		},
		{
			name:        "127.0.0.1 blocked",
			url:         "http://127.0.0.1/",
			shouldErr:   true,
			errContains: "private IP",
		},
		{
			name:        "Localhost subdomain blocked",
			url:         "http://admin.localhost/",
			shouldErr:   true,
			errContains: "localhost",
		},
		{
			name:        "10.x private network blocked",
			url:         "http://10.0.0.1/",
			shouldErr:   true,
			errContains: "private IP",
		},
		{
			name:        "192.168.x private network blocked",
			url:         "http://192.168.1.1/",
			shouldErr:   true,
			errContains: "private IP",
		},
		{
			name:        "172.16.x private network blocked",
			url:         "http://172.16.0.1/",
			shouldErr:   true,
			errContains: "private IP",
		},
		{
			name:        "Link-local blocked",
			url:         "http://169.254.169.254/latest/meta-data/",
			shouldErr:   true,
			errContains: "private IP",
		},
		{
			name:        "Credential injection blocked",
			url:         "http://evil.com@localhost/",
			shouldErr:   true,
			errContains: "@",
		},
		{
			name:        "Missing hostname",
			url:         "http:///path-only",
			shouldErr:   true,
			errContains: "hostname",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ValidateURL(tt.url)
			if tt.shouldErr {
				if err == nil {
					t.Fatalf("expected error for %s, got nil", tt.url)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %s: %v", tt.url, err)
			}
		})
	}
}

func TestWrapClientAllowsLocalhost(t *testing.T) {
	client := WrapClient(nil)
	if client.blockPrivateIP {
		t.Error("WrapClient should not block private IPs")
	}
	if _, err := client.ValidateURL("http://127.0.0.1:8080/"); err != nil {
		t.Errorf("wrapped client should accept localhost URLs, got %v", err)
	}
}
