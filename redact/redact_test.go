package redact_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amalgan/trackman/redact"
)

func TestString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "short", in: "ab", want: "**"},
		{name: "password", in: "hunter2secret", want: "hun*******ret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := redact.String(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, len(tt.in))
		})
	}
}

func TestStringNeverLeaksMiddle(t *testing.T) {
	t.Parallel()

	secret := "0123456789abcdef"
	got := redact.String(secret)
	assert.NotContains(t, got, secret[len(secret)/4:len(secret)*3/4])
	assert.True(t, strings.Contains(got, "*"))
}
