// Package identity validates the caregiver identifiers carried in bearer
// tokens before they reach a store.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateUserID checks that a token-supplied user id is a well-formed UUID.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("user id must be a uuid")
	}
	return nil
}
