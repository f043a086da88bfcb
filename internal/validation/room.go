package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	roomNameMinLength = 3
	roomNameMaxLength = 120
)

var inviteCodeRegex = regexp.MustCompile(`^[A-Z0-9]{12}$`)

// ValidateRoomName validates a room display name: trimmed length bounds and
// no control characters.
func ValidateRoomName(name string) error {
	trimmed := strings.TrimSpace(name)
	runes := []rune(trimmed)
	if len(runes) < roomNameMinLength {
		return fmt.Errorf("room name must be at least %d characters", roomNameMinLength)
	}
	if len(runes) > roomNameMaxLength {
		return fmt.Errorf("room name must be at most %d characters", roomNameMaxLength)
	}
	for _, r := range runes {
		if unicode.IsControl(r) {
			return fmt.Errorf("room name cannot contain control characters")
		}
	}
	return nil
}

// ValidateInviteCode checks the 12-character uppercase alphanumeric format
// before any lookup is attempted.
func ValidateInviteCode(code string) error {
	if !inviteCodeRegex.MatchString(code) {
		return fmt.Errorf("invite code must be 12 uppercase letters or digits")
	}
	return nil
}
