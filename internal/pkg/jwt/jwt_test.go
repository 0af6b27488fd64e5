package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("ingest-bot", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "ingest-bot", claims.Client)
	require.NotNil(t, claims.ExpiresAt)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("cli", []byte("a"), 0)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("b"))
	require.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("cli", []byte("a"), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("a"))
	require.Error(t, err)
}

func TestGenerateTokenRequiresClient(t *testing.T) {
	_, err := GenerateToken("", []byte("a"), time.Hour)
	require.Error(t, err)
}
