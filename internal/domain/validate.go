package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation wraps all client-side input validation failures so callers
// can map them back onto the originating form.
var ErrValidation = errors.New("validation failed")

// ValidateJoinQueue checks join-queue input before the intent leaves the
// process. The server re-validates; this just keeps obvious mistakes local.
func ValidateJoinQueue(name string, members int, contactInfo string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxTeamNameLen {
		return fmt.Errorf("%w: team name must be 1-%d characters", ErrValidation, MaxTeamNameLen)
	}
	if members < 1 || members > MaxTeamMembers {
		return fmt.Errorf("%w: members must be 1-%d", ErrValidation, MaxTeamMembers)
	}
	if len(contactInfo) > MaxContactInfoLen {
		return fmt.Errorf("%w: contact info must be at most %d characters", ErrValidation, MaxContactInfoLen)
	}
	return nil
}
