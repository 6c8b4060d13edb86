package models

// Roles known to the credentialing workflow
const (
	RoleAdmin       = "admin"
	RoleReviewer    = "reviewer"
	RoleCoordinator = "coordinator"
)

// JWTClaims represents the structure of the JWT token claims
type JWTClaims struct {
	JTI         string      `json:"jti"`
	Exp         int64       `json:"exp"`
	NBF         int64       `json:"nbf"`
	IAT         int64       `json:"iat"`
	ISS         string      `json:"iss"`
	AUD         interface{} `json:"aud"`
	SUB         string      `json:"sub"`
	TYP         string      `json:"typ"`
	AZP         string      `json:"azp"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	Scope             string `json:"scope"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	Email             string `json:"email"`
}

// GetAudiences normalizes the aud claim, which may be a string or a list
func (c *JWTClaims) GetAudiences() []string {
	switch aud := c.AUD.(type) {
	case string:
		return []string{aud}
	case []string:
		return aud
	case []interface{}:
		out := make([]string, 0, len(aud))
		for _, a := range aud {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// HasRole reports whether the realm roles include role
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.RealmAccess.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ReviewerIdentity is the name recorded in committee decisions
func (c *JWTClaims) ReviewerIdentity() string {
	switch {
	case c.PreferredUsername != "":
		return c.PreferredUsername
	case c.Email != "":
		return c.Email
	case c.Name != "":
		return c.Name
	}
	return c.SUB
}
