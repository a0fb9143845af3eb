package validation

import (
	"strings"
	"testing"
)

func TestIsValidTONAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		valid   bool
	}{
		{
			name:    "bounceable",
			address: "EQDtFpEwcFAEcRe5mLVh2N6C0x-_hJEM7W61_JLnSF74p4q2",
			valid:   true,
		},
		{
			name:    "non-bounceable",
			address: "UQDtFpEwcFAEcRe5mLVh2N6C0x-_hJEM7W61_JLnSF74p4q2",
			valid:   true,
		},
		{
			name:    "raw workchain 0",
			address: "0:ed169130705004711798b4e68d5e0c8b2f8bf84910ced6eb5fc92e7485ef8a78",
			valid:   true,
		},
		{
			name:    "raw masterchain",
			address: "-1:ed169130705004711798b4e68d5e0c8b2f8bf84910ced6eb5fc92e7485ef8a78",
			valid:   true,
		},
		{
			name:    "surrounding spaces",
			address: "  EQabc  ",
			valid:   true,
		},
		{
			name:    "unknown prefix",
			address: "0x52908400098527886E0F7030069857D2E4169EE7",
			valid:   false,
		},
		{
			name:    "too long",
			address: "EQ" + strings.Repeat("a", MaxTONAddressLength),
			valid:   false,
		},
		{
			name:    "empty string",
			address: "",
			valid:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidTONAddress(tt.address)
			if got != tt.valid {
				t.Fatalf("IsValidTONAddress(%q) = %v, want %v", tt.address, got, tt.valid)
			}
		})
	}
}
