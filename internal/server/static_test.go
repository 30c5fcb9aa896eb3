package server

import (
	"net/http/httptest"
	"testing"
)

func TestSanitizeRelPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"simple file", "main.abc123.js", "main.abc123.js", true},
		{"nested file", "fonts/inter.woff2", "fonts/inter.woff2", true},
		{"empty", "", "", false},
		{"dot segment", "./main.js", "", false},
		{"traversal", "../secrets.txt", "", false},
		{"nested traversal", "a/../../etc/passwd", "", false},
		{"absolute after strip", "/etc/passwd", "", false},
		{"backslash", "..\\windows", "", false},
		{"nul byte", "main.js\x00.png", "", false},
		{"bare dot", ".", "", false},
		{"bare dotdot", "..", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sanitizeRelPath(tt.in)
			if ok != tt.ok {
				t.Fatalf("sanitizeRelPath(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("sanitizeRelPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsFingerprinted(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"main.a1b2c3d4.js", true},
		{"main.a1b2c3d4e5f6.css", true},
		{"server.deadbeef", true},
		{"main.a1b2c3d4.js.map", true},
		{"main.js", false},
		{"main.v2.js", false},
		{"styles.css", false},
		{"readme", false},
		{"main.abcdefg.js", false}, // 7 hex chars, too short
		{"main.zzzzzzzz.js", false},
	}

	for _, tt := range tests {
		if got := isFingerprinted(tt.path); got != tt.want {
			t.Errorf("isFingerprinted(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestApplyBuildCacheHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	applyBuildCacheHeaders(rec, "main.a1b2c3d4.js")
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Errorf("fingerprinted Cache-Control = %q", got)
	}

	rec = httptest.NewRecorder()
	applyBuildCacheHeaders(rec, "manifest.json")
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600, must-revalidate" {
		t.Errorf("plain Cache-Control = %q", got)
	}
}
