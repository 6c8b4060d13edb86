package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testReviewerRole = "credentialing:reviewer"
	testAdminRole    = "credentialing:admin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		auth       string
		wantStatus int
	}{
		{name: "valid token", auth: testutil.BearerToken(testutil.ReviewerClaims("dr.house", testReviewerRole)), wantStatus: http.StatusOK},
		{name: "no header", auth: "", wantStatus: http.StatusUnauthorized},
		{name: "basic scheme", auth: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "two segments", auth: "Bearer abc.def", wantStatus: http.StatusUnauthorized},
		{name: "payload not base64", auth: "Bearer abc.!!!.sig", wantStatus: http.StatusUnauthorized},
		{name: "payload not json", auth: "Bearer abc.bm90IGpzb24.sig", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AuthMiddleware())
			router.GET("/test", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := serve(router, http.MethodGet, "/test", tt.auth)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthMiddleware_StoresReviewer(t *testing.T) {
	router := gin.New()
	router.Use(AuthMiddleware())

	var reviewer string
	var claims *models.JWTClaims
	router.GET("/test", func(c *gin.Context) {
		var err error
		claims, err = ClaimsFrom(c)
		require.NoError(t, err)
		reviewer, err = ReviewerFrom(c)
		require.NoError(t, err)
		c.Status(http.StatusOK)
	})

	w := serve(router, http.MethodGet, "/test", testutil.BearerToken(testutil.ReviewerClaims("dr.house", testReviewerRole)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dr.house", reviewer)
	assert.True(t, claims.HasRole(testReviewerRole))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		roles      []string
		wantStatus int
	}{
		{name: "reviewer", roles: []string{testReviewerRole}, wantStatus: http.StatusOK},
		{name: "admin", roles: []string{testAdminRole}, wantStatus: http.StatusOK},
		{name: "coordinator", roles: []string{"credentialing:coordinator"}, wantStatus: http.StatusForbidden},
		{name: "no roles", roles: nil, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AuthMiddleware())
			router.POST("/decide", RequireRole(testReviewerRole, testAdminRole), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			claims := models.JWTClaims{PreferredUsername: "someone"}
			claims.RealmAccess.Roles = tt.roles
			w := serve(router, http.MethodPost, "/decide", testutil.BearerToken(claims))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	router := gin.New()
	router.GET("/test", RequireRole(testAdminRole), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serve(router, http.MethodGet, "/test", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClaimsFrom_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := ClaimsFrom(c)
	assert.ErrorIs(t, err, ErrClaimsNotFound)

	c.Set(ClaimsKey, "not claims")
	_, err = ClaimsFrom(c)
	assert.Error(t, err)
}
