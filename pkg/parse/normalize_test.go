package parse

import (
	"errors"
	"net/url"
	"testing"

	"link-crawler/pkg/utils"
)

func TestHostOf(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple", "http://example.com/path", "example.com"},
		{"Uppercase", "HTTPS://Example.COM/", "example.com"},
		{"WithPort", "http://example.com:8080/a", "example.com"},
		{"IPv6", "http://[::1]:8080/", "::1"},
		{"WithUserinfo", "http://user:pw@host.org/x", "host.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, err := HostOf(tt.input)
			if err != nil {
				t.Fatalf("HostOf(%q) unexpected error: %v", tt.input, err)
			}
			if host != tt.expected {
				t.Errorf("HostOf(%q) = %q, want %q", tt.input, host, tt.expected)
			}
		})
	}
}

func TestHostOf_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"NoScheme", "example.com/path"},
		{"RelativePath", "/just/a/path"},
		{"BadEscape", "http://exa%zzmple.com/"},
		{"Garbage", "::not a url"},
		{"Empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HostOf(tt.input)
			if err == nil {
				t.Fatalf("HostOf(%q) expected error", tt.input)
			}
			if !errors.Is(err, utils.ErrMalformedURL) {
				t.Errorf("HostOf(%q) error should wrap ErrMalformedURL, got %v", tt.input, err)
			}
		})
	}
}

func TestCanonicalize_NilInput(t *testing.T) {
	if result := Canonicalize(nil); result != "" {
		t.Errorf("Canonicalize(nil) = %q, want empty string", result)
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"UppercaseSchemeHost", "HTTP://EXAMPLE.COM/Path", "http://example.com/Path"},
		{"DefaultHTTPPort", "http://example.com:80/a", "http://example.com/a"},
		{"DefaultHTTPSPort", "https://example.com:443/a", "https://example.com/a"},
		{"NonDefaultPort", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"HTTPSOn80Kept", "https://example.com:80/a", "https://example.com:80/a"},
		{"EmptyPath", "http://example.com", "http://example.com/"},
		{"FragmentRemoved", "http://example.com/a#section", "http://example.com/a"},
		{"QueryKept", "http://example.com/a?page=2", "http://example.com/a?page=2"},
		{"TrailingSlashKept", "http://example.com/docs/", "http://example.com/docs/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("url.Parse(%q): %v", tt.input, err)
			}
			if result := Canonicalize(parsed); result != tt.expected {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCanonicalize_DoesNotModifyInput(t *testing.T) {
	parsed := &url.URL{Scheme: "HTTP", Host: "Example.com:80", Path: "/a", Fragment: "frag"}
	before := *parsed

	if got := Canonicalize(parsed); got != "http://example.com/a" {
		t.Errorf("Canonicalize(%#v) = %q, want %q", parsed, got, "http://example.com/a")
	}
	if *parsed != before {
		t.Errorf("Canonicalize modified its input: got %#v, want %#v", *parsed, before)
	}
}

func TestParseAbsolute(t *testing.T) {
	canonical, parsed, err := ParseAbsolute("https://Docs.Example.com/guide#intro")
	if err != nil {
		t.Fatalf("ParseAbsolute unexpected error: %v", err)
	}
	if canonical != "https://docs.example.com/guide" {
		t.Errorf("canonical = %q", canonical)
	}
	if parsed.Host != "Docs.Example.com" {
		t.Errorf("parsed host = %q, want original casing", parsed.Host)
	}
}

func TestParseAbsolute_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Relative", "docs/guide"},
		{"FTP", "ftp://example.com/file"},
		{"Mailto", "mailto:someone@example.com"},
		{"NoHost", "http:///path"},
		{"Empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseAbsolute(tt.input)
			if err == nil {
				t.Fatalf("ParseAbsolute(%q) expected error", tt.input)
			}
			if !errors.Is(err, utils.ErrMalformedURL) {
				t.Errorf("ParseAbsolute(%q) error should wrap ErrMalformedURL, got %v", tt.input, err)
			}
		})
	}
}
