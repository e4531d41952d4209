package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-with-enough-length"

func protectedRouter(am *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(ContextKeySubject)})
	})
	return router
}

func doGet(router http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_GenerateAndValidate(t *testing.T) {
	am := NewAuthMiddleware(testSecret, "crossover-go")

	token, expiresAt, err := am.GenerateToken("client-1", "runs:read", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := am.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.Subject)
	assert.Equal(t, "runs:read", claims.Scope)
	assert.Equal(t, "crossover-go", claims.Issuer)
}

func TestAuthMiddleware_ValidateToken_Rejects(t *testing.T) {
	am := NewAuthMiddleware(testSecret, "crossover-go")

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthMiddleware("another-secret", "crossover-go")
		token, _, err := other.GenerateToken("client-1", "", time.Hour)
		require.NoError(t, err)
		_, err = am.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewAuthMiddleware(testSecret, "someone-else")
		token, _, err := other.GenerateToken("client-1", "", time.Hour)
		require.NoError(t, err)
		_, err = am.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unsigned token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = am.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, _, err := am.GenerateToken("client-1", "", -time.Minute)
		require.NoError(t, err)
		_, err = am.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
}

func TestRequireAuth(t *testing.T) {
	am := NewAuthMiddleware(testSecret, "crossover-go")
	router := protectedRouter(am)

	valid, _, err := am.GenerateToken("client-1", "", time.Hour)
	require.NoError(t, err)
	expired, _, err := am.GenerateToken("client-1", "", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "client-1"},
		{"lowercase bearer", "bearer " + valid, http.StatusOK, "client-1"},
		{"missing header", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Invalid authorization header format"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "Invalid authorization header format"},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, "Invalid token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "Token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(router, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
