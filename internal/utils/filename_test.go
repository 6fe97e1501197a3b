package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain name kept", "diagram.png", "diagram.png"},
		{"invalid characters removed", `up<lo>ad:"file".png`, "uploadfile.png"},
		{"query string stripped", "avatar.png?v=123", "avatar.png"},
		{"fragment stripped", "photo.jpg#section", "photo.jpg"},
		{"whitespace collapsed", "my \t picture \n.png", "my picture .png"},
		{"empty becomes attachment", "", "attachment"},
		{"only invalid chars becomes attachment", `<>:"`, "attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilenameLimitsLength(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "aaaaaaaaaa"
	}
	result := SanitizeFilename(long + ".png")
	assert.LessOrEqual(t, len(result), 200)
}
