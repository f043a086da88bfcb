package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRoomName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		roomName string
		wantErr  bool
	}{
		{"Valid", "Website redesign", false},
		{"Exactly Min Length", "abc", false},
		{"Exactly Max Length", strings.Repeat("n", 120), false},
		{"Unicode", "Проект Альфа", false},
		{"Too Short", "ab", true},
		{"Too Long", strings.Repeat("n", 121), true},
		{"Whitespace Only", "    ", true},
		{"Control Characters", "name\x00here", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomName(tt.roomName)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateInviteCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"Valid", "A1B2C3D4E5F6", false},
		{"All Digits", "012345678901", false},
		{"Lowercase", "a1b2c3d4e5f6", true},
		{"Too Short", "A1B2C3D4E5F", true},
		{"Too Long", "A1B2C3D4E5F6G", true},
		{"Illegal Chars", "A1B2-3D4E5F6", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInviteCode(tt.code)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
