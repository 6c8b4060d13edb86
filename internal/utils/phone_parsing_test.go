package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhoneNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantE164 string
		wantCC   string
		wantArea string
		wantErr  bool
	}{
		{name: "us formatted", input: "(617) 253-1000", wantE164: "+16172531000", wantCC: "1", wantArea: "617"},
		{name: "us with prefix", input: "+1 212 736 3100", wantE164: "+12127363100", wantCC: "1", wantArea: "212"},
		{name: "international", input: "+44 20 7031 3000", wantE164: "+442070313000", wantCC: "44", wantArea: "20"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "letters", input: "call me", wantErr: true},
		{name: "too short", input: "12345", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePhoneNumber(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantE164, got.E164)
			assert.Equal(t, tt.wantCC, got.CountryCode)
			assert.Equal(t, tt.wantArea, got.AreaCode)
		})
	}
}

func TestIsPossiblePhone(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"(617) 555-0142", true},
		{"617-555-0142", true},
		{"+16175550142", true},
		{"123", false},
		{"", false},
		{"not a phone", false},
		{"12345678901234567890", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPossiblePhone(tt.input))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+16172531000", NormalizePhone(" (617) 253-1000 "))
	assert.Equal(t, "123", NormalizePhone(" 123 "))
}
