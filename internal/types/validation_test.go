package types

import (
	"errors"
	"strings"
	"testing"
)

func TestKeyValidatorDefaults(t *testing.T) {
	v := NewKeyValidator(DefaultKeyValidationConfig())

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple key", "price-sol", false},
		{"namespaced key", "portfolio-0xABCDEF", false},
		{"key with spaces", "page content cache", false},
		{"unicode key", "préis-ü", false},
		{"empty key", "", true},
		{"control character", "bad\x00key", true},
		{"newline", "bad\nkey", true},
		{"too long", strings.Repeat("k", 2048), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Validate(%q) error = %v, want ErrInvalidKey chain", tt.key, err)
			}
		})
	}
}

func TestKeyValidatorAllowances(t *testing.T) {
	t.Run("allow empty", func(t *testing.T) {
		v := NewKeyValidator(KeyValidationConfig{AllowEmpty: true})
		if err := v.Validate(""); err != nil {
			t.Errorf("Validate(\"\") error = %v, want nil", err)
		}
	})

	t.Run("disallow whitespace", func(t *testing.T) {
		cfg := DefaultKeyValidationConfig()
		cfg.AllowWhitespace = false
		v := NewKeyValidator(cfg)
		if err := v.Validate("has space"); err == nil {
			t.Error("Validate() error = nil, want whitespace rejection")
		}
	})

	t.Run("allow control chars", func(t *testing.T) {
		cfg := DefaultKeyValidationConfig()
		cfg.AllowControlChars = true
		v := NewKeyValidator(cfg)
		if err := v.Validate("tab\there"); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("zero max length disables length check", func(t *testing.T) {
		v := NewKeyValidator(KeyValidationConfig{MaxKeyLength: 0})
		if err := v.Validate(strings.Repeat("k", 4096)); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})
}

func TestKeyValidatorReservedPatterns(t *testing.T) {
	cfg := DefaultKeyValidationConfig()
	cfg.ReservedPatterns = []string{"__internal__", "::"}
	v := NewKeyValidator(cfg)

	if err := v.Validate("__internal__state"); err == nil {
		t.Error("Validate() error = nil, want reserved pattern rejection")
	}
	if err := v.Validate("ns::key"); err == nil {
		t.Error("Validate() error = nil, want reserved pattern rejection")
	}
	if err := v.Validate("normal-key"); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidateKeyPackageLevel(t *testing.T) {
	if err := ValidateKey("ok"); err != nil {
		t.Errorf("ValidateKey(ok) error = %v, want nil", err)
	}
	err := ValidateKey("")
	if err == nil {
		t.Fatal("ValidateKey(\"\") error = nil, want error")
	}
	if !IsInvalidKey(err) {
		t.Errorf("IsInvalidKey(%v) = false, want true", err)
	}
}
