package horosafe

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"42", true},
		{"0193f3c2-7b1e-7a4c-9d2e-3f5a6b7c8d9e", true},
		{"contact_1.v2", true},
		{"", false},
		{"../etc", false},
		{"a b", false},
		{"id;drop", false},
		{strings.Repeat("a", 257), false},
	}
	for _, tt := range tests {
		err := ValidateIdentifier(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateIdentifier(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
		}
	}
}

func TestValidateLinkURL(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"https://example.com/avatar.png", true},
		{"HTTP://EXAMPLE.COM/a.jpg", true},
		{"javascript:alert(1)", false},
		{"data:image/png;base64,AAAA", false},
		{"https:///nohost", false},
		{"/relative.png", false},
	}
	for _, tt := range tests {
		err := ValidateLinkURL(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateLinkURL(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
		}
	}
	if err := ValidateLinkURL("ftp://example.com"); !errors.Is(err, ErrUnsafeScheme) {
		t.Errorf("ftp scheme: got %v, want ErrUnsafeScheme", err)
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil {
		t.Fatalf("within limit: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q", data)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: got %v, want ErrTooLarge", err)
	}
}
