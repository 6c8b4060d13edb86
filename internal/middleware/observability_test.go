package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())

	var seen string
	router.GET("/test", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})

	t.Run("generates one", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/test", "")
		assert.True(t, utils.IsUUID(seen))
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("keeps the caller's", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	})
}

func TestRequestLogger(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), RequestLogger())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, want := range map[string]int{"/ok": 200, "/bad": 400, "/boom": 500} {
		w := serve(router, http.MethodGet, path, "")
		assert.Equal(t, want, w.Code, path)
	}
}

func TestRequestTracker(t *testing.T) {
	router := gin.New()
	router.Use(RequestTracker())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(router, http.MethodGet, "/test", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuditContext(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), AuthMiddleware(), AuditContext())

	var got utils.AuditContext
	router.GET("/test", func(c *gin.Context) {
		got = utils.AuditContextFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", testutil.BearerToken(testutil.ReviewerClaims("dr.house", testReviewerRole)))
	req.Header.Set("X-Request-ID", "req-7")
	req.Header.Set("User-Agent", "roster-bot")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "dr.house", got.UserID)
	assert.Equal(t, "req-7", got.RequestID)
	assert.Equal(t, "roster-bot", got.UserAgent)
}
