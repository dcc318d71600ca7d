package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidator(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		name     string
		password string
		wantCode string
	}{
		{"valid", "sturdy-pass1", ""},
		{"too short", "ab1", "min_length"},
		{"no letter", "123456789", "letter"},
		{"no digit", "onlyletters", "digit"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.password)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("Validate(%q) = %v, want nil", tc.password, err)
				}
				return
			}

			var violation *PasswordValidationError
			if !errors.As(err, &violation) {
				t.Fatalf("Validate(%q) = %v, want PasswordValidationError", tc.password, err)
			}
			if violation.Code != tc.wantCode {
				t.Errorf("Code = %q, want %q", violation.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireStrengthRule(t *testing.T) {
	rule := RequireStrengthRule(3, "jane.doe@example.com")

	if err := rule.Validate("password123"); err == nil {
		t.Error("weak password passed the strength rule")
	}
	if err := rule.Validate("tr0ub4dor&3-horse-staple"); err != nil {
		t.Errorf("strong password rejected: %v", err)
	}
}
