package middleware

import (
	"bitwise74/fileshare-api/pkg/security"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatedRouter(ti *security.TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(NewRequestIDMiddleware())
	r.GET("/me", NewJWTMiddleware(ti), func(c *gin.Context) {
		claims := c.MustGet("identity").(*security.Claims)
		c.JSON(http.StatusOK, gin.H{"id": c.GetString("userID"), "email": claims.Email})
	})
	return r
}

func TestJWT_BearerHeader(t *testing.T) {
	ti := security.NewTokenIssuer("secret", time.Hour)
	tok, _, err := ti.Issue("u1", "Ada", "ada@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	gatedRouter(ti).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","email":"ada@example.com"}`, w.Body.String())
}

func TestJWT_Cookie(t *testing.T) {
	ti := security.NewTokenIssuer("secret", time.Hour)
	tok, _, err := ti.Issue("u1", "Ada", "ada@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tok})
	w := httptest.NewRecorder()
	gatedRouter(ti).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWT_Rejections(t *testing.T) {
	ti := security.NewTokenIssuer("secret", time.Hour)
	forged, _, err := security.NewTokenIssuer("other", time.Hour).Issue("u1", "Ada", "ada@example.com")
	require.NoError(t, err)

	cases := map[string]struct {
		header string
		msg    string
	}{
		"missing":    {"", "Access denied. No token provided"},
		"not bearer": {"Basic abc", "Access denied. No token provided"},
		"garbage":    {"Bearer nope", "Invalid or expired token"},
		"forged":     {"Bearer " + forged, "Invalid or expired token"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			gatedRouter(ti).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tc.msg)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestBodySizeLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/echo", BodySizeLimiter(8), func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			if IsBodyTooLarge(err) {
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"a long value"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
