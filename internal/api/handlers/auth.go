package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenScope is granted to every token issued for an API key.
const TokenScope = "runs:read"

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateToken(subject, scope string, duration time.Duration) (string, time.Time, error)
}

type AuthHandler struct {
	issuer TokenIssuer
	expiry time.Duration
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Scope       string    `json:"scope"`
}

func NewAuthHandler(issuer TokenIssuer, expiry time.Duration) *AuthHandler {
	return &AuthHandler{issuer: issuer, expiry: expiry}
}

// IssueToken exchanges an already verified API key for a bearer token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	token, expiresAt, err := h.issuer.GenerateToken("api-client", TokenScope, h.expiry)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Scope:       TokenScope,
	})
}
