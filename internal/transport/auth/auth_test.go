package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/lead-pipeline/internal/transport/auth"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(iss *auth.Issuer) *gin.Engine {
	r := gin.New()
	r.GET("/who", iss.Middleware(), func(c *gin.Context) {
		id, ok := auth.TenantID(c)
		fromCtx, ok2 := auth.TenantFromContext(c.Request.Context())
		if !ok || !ok2 || id != fromCtx {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	return r
}

func TestIssueAndParse(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour)
	tenantID := uuid.New()

	tok, err := iss.Issue(tenantID, "u1")
	require.NoError(t, err)

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, tenantID, claims.TenantID)
	assert.Equal(t, "u1", claims.UserID)
}

func TestParse_Rejects(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour)
	other := auth.NewIssuer("other", time.Hour)
	expired := auth.NewIssuer("secret", -time.Minute)

	foreign, err := other.Issue(uuid.New(), "")
	require.NoError(t, err)
	stale, err := expired.Issue(uuid.New(), "")
	require.NoError(t, err)
	noTenant, err := iss.Issue(uuid.Nil, "")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	lapsed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		TenantID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong secret":      foreign,
		"expired":           stale,
		"expired by claims": lapsed,
		"no tenant":         noTenant,
		"garbage":           "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Parse(tok)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour)
	tenantID := uuid.New()
	tok, err := iss.Issue(tenantID, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
	}{
		{"header", "Bearer " + tok, "", http.StatusOK},
		{"lowercase scheme", "bearer " + tok, "", http.StatusOK},
		{"query for websocket", "", "?token=" + tok, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"invalid", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/who"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			newRouter(iss).ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tenantID.String(), w.Body.String())
			}
		})
	}
}
