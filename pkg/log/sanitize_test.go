package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeField_SensitiveKeys(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		expected string
	}{
		{
			name:     "api_key field",
			key:      "api_key",
			value:    "sk-1234567890abcdefghij",
			expected: "sk-1****ghij",
		},
		{
			name:     "apikey no underscore",
			key:      "apikey",
			value:    "key12345",
			expected: "k******5",
		},
		{
			name:     "authorization header",
			key:      "Authorization",
			value:    "Bearer token123456",
			expected: "Bear****3456",
		},
		{
			name:     "token field",
			key:      "token",
			value:    "abc123xyz789",
			expected: "abc1****z789",
		},
		{
			name:     "webhook credential",
			key:      "webhook_secret",
			value:    "whsec_abcdef123456",
			expected: "whse****3456",
		},
		{
			name:     "password field",
			key:      "password",
			value:    "mysecretpassword123",
			expected: "myse****d123",
		},
		{
			name:     "short secret",
			key:      "secret",
			value:    "abc",
			expected: "a*c",
		},
		{
			name:     "two char secret",
			key:      "secret",
			value:    "ab",
			expected: "**",
		},
		{
			name:     "single char secret",
			key:      "secret",
			value:    "a",
			expected: "*",
		},
		{
			name:     "empty value",
			key:      "api_key",
			value:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeField(tt.key, tt.value)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSanitizeField_NonSensitive(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"provider field", "provider", "openai"},
		{"operation field", "operation", "receipt"},
		{"request id field", "request_id", "mgrn0zfqda"},
		{"reason field", "reason", "circuit breaker open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeField(tt.key, tt.value)
			assert.Equal(t, tt.value, result)
		})
	}
}

func TestSanitizeField_CaseInsensitiveKeys(t *testing.T) {
	sensitiveKeys := []string{
		"API_KEY", "Api_Key", "api_key",
		"TOKEN", "Token", "token",
		"SECRET", "Secret", "secret",
		"PASSWORD", "Password", "password",
	}

	for _, key := range sensitiveKeys {
		t.Run(key, func(t *testing.T) {
			result := SanitizeField(key, "sensitivevalue123")
			assert.Contains(t, result, "*")
			assert.NotEqual(t, "sensitivevalue123", result)
		})
	}
}

func TestSanitizeToken_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{
			name:     "8 char string boundary",
			value:    "12345678",
			expected: "1******8",
		},
		{
			name:     "9 char string",
			value:    "123456789",
			expected: "1234****6789",
		},
		{
			name:     "empty string",
			value:    "",
			expected: "",
		},
		{
			name:     "single char",
			value:    "a",
			expected: "*",
		},
		{
			name:     "two chars",
			value:    "ab",
			expected: "**",
		},
		{
			name:     "three chars",
			value:    "abc",
			expected: "a*c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeToken(tt.value)
			assert.Equal(t, tt.expected, result)
		})
	}
}
