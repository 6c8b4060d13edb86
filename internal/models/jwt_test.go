package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAudiences(t *testing.T) {
	tests := []struct {
		name string
		aud  interface{}
		want []string
	}{
		{name: "string", aud: "credentialing", want: []string{"credentialing"}},
		{name: "string slice", aud: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "interface slice", aud: []interface{}{"a", "b"}, want: []string{"a", "b"}},
		{name: "mixed interface slice skips non strings", aud: []interface{}{"a", 1, "b"}, want: []string{"a", "b"}},
		{name: "nil", aud: nil, want: []string{}},
		{name: "unsupported", aud: 12345, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &JWTClaims{AUD: tt.aud}
			assert.Equal(t, tt.want, claims.GetAudiences())
		})
	}
}

func TestHasRole(t *testing.T) {
	claims := &JWTClaims{}
	claims.RealmAccess.Roles = []string{"offline_access", "credentialing:reviewer"}

	assert.True(t, claims.HasRole("credentialing:reviewer"))
	assert.False(t, claims.HasRole("credentialing:admin"))
}

func TestReviewerIdentity(t *testing.T) {
	assert.Equal(t, "jdoe", (&JWTClaims{PreferredUsername: "jdoe", Email: "j@x.org"}).ReviewerIdentity())
	assert.Equal(t, "j@x.org", (&JWTClaims{Email: "j@x.org", Name: "J Doe"}).ReviewerIdentity())
	assert.Equal(t, "J Doe", (&JWTClaims{Name: "J Doe", SUB: "123"}).ReviewerIdentity())
	assert.Equal(t, "123", (&JWTClaims{SUB: "123"}).ReviewerIdentity())
}
