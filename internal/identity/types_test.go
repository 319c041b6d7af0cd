package identity

import "testing"

func TestValidateUserID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		userID string
		ok     bool
	}{
		{"canonical uuid", "7d5cfba8-80c0-4a1e-9f9d-2f1f4d2f3a10", true},
		{"uppercase uuid", "7D5CFBA8-80C0-4A1E-9F9D-2F1F4D2F3A10", true},
		{"blank", "  ", false},
		{"empty", "", false},
		{"not a uuid", "user-42", false},
		{"truncated", "7d5cfba8-80c0", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateUserID(tc.userID)
			if tc.ok && err != nil {
				t.Fatalf("ValidateUserID(%q) = %v, want nil", tc.userID, err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("ValidateUserID(%q) = nil, want error", tc.userID)
			}
		})
	}
}
