package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNewFromRegistry(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		contains string
	}{
		{"E101", CategoryConfig, "Environment configuration not found"},
		{"E111", CategoryBuild, "No build found"},
		{"E112", CategoryBuild, "Build environment mismatch"},
		{"E121", CategoryCompile, "compile errors"},
		{"E131", CategoryRuntime, "Render function failed"},
		{"E141", CategoryServer, "failed to start"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code)
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
			if err.Category != tt.category {
				t.Errorf("Category = %q, want %q", err.Category, tt.category)
			}
			if !strings.Contains(err.Message, tt.contains) {
				t.Errorf("Message = %q, want it to contain %q", err.Message, tt.contains)
			}
		})
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("E999")
	if err.Code != "E999" {
		t.Errorf("Code = %q, want E999", err.Code)
	}
	if err.Message != "Unknown error" {
		t.Errorf("Message = %q, want Unknown error", err.Message)
	}
}

func TestErrorString(t *testing.T) {
	coded := New("E111")
	if got := coded.Error(); got != "E111: No build found" {
		t.Errorf("Error() = %q", got)
	}

	uncoded := Newf(CategoryCLI, "bad flag %q", "--frob")
	if got := uncoded.Error(); got != `bad flag "--frob"` {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := New("E121").WithDetail("main.go:3: syntax error").Wrap(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Detail != "main.go:3: syntax error" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E121") != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New("E112")
	if got := FromError(orig, "E121"); got != orig {
		t.Error("FromError should pass *Error through unchanged")
	}

	wrapped := FromError(stderrors.New("boom"), "E141")
	if wrapped.Code != "E141" {
		t.Errorf("Code = %q, want E141", wrapped.Code)
	}
	if wrapped.Wrapped == nil {
		t.Error("expected wrapped cause")
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode(New("E111"), "E111") {
		t.Error("IsCode(E111, E111) = false")
	}
	if IsCode(New("E111"), "E112") {
		t.Error("IsCode(E111, E112) = true")
	}
	if IsCode(stderrors.New("plain"), "E111") {
		t.Error("IsCode(plain error) = true")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E121").
		WithDetail("src/app.js:1:1: Unexpected token").
		WithSuggestion("Fix the syntax error and rebuild")

	out := err.Format()
	for _, want := range []string{
		"ERROR E121",
		"Unexpected token",
		"hint: Fix the syntax error",
		"compile",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatNoColorCodes(t *testing.T) {
	DisableColors()
	defer EnableColors()

	out := New("E101").Format()
	if strings.Contains(out, "\033[") {
		t.Errorf("Format() contains ANSI codes with colors disabled:\n%q", out)
	}
}
