package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityworks/broadcast-app/internal/config"
)

const testIssuer = "https://id.broadcast.test"

func TestLegacyToken(t *testing.T) {
	token, err := NewLegacyToken("user-1", "op@example.com", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateLegacyToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "op@example.com", claims.Email)
	assert.Equal(t, LegacyIssuer, claims.Issuer)

	_, err = ValidateLegacyToken(token, "other-secret")
	assert.Error(t, err)
}

func TestLegacyTokenExpired(t *testing.T) {
	claims := LegacyClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestLegacyTokenRequiresUser(t *testing.T) {
	token, err := NewLegacyToken("", "op@example.com", "secret", 0)
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "secret")
	assert.Error(t, err)
}

func TestLegacyTokenRejectsOtherAlgorithms(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, LegacyClaims{UserID: "user-1"}).SignedString(key)
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "secret")
	assert.Error(t, err)
}

// rsaVerifier returns a verifier trusting one RSA key with kid "k1"
func rsaVerifier(t *testing.T, audience string) (*JWKSVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	set := map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	raw, err := json.Marshal(set)
	require.NoError(t, err)

	jwks, err := keyfunc.NewJWKSetJSON(raw)
	require.NoError(t, err)
	return newJWKSVerifier(jwks, testIssuer, audience), key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() Claims {
	return Claims{
		UserID: "operator-1",
		Email:  "op@broadcast.test",
		Name:   "Operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{"upload-ui"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestJWKSVerifierValidate(t *testing.T) {
	v, key := rsaVerifier(t, "upload-ui")
	defer v.Close()

	claims, err := v.Validate(signRS256(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.UserID)
	assert.Equal(t, "Operator", claims.Name)
}

func TestJWKSVerifierRejects(t *testing.T) {
	v, key := rsaVerifier(t, "upload-ui")

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://elsewhere.test"

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"another-app"}

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	tests := map[string]Claims{
		"issuer":   wrongIssuer,
		"audience": wrongAudience,
		"expiry":   noExpiry,
	}
	for name, claims := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(signRS256(t, key, claims))
			assert.Error(t, err)
		})
	}

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = v.Validate(signRS256(t, other, validClaims()))
	assert.Error(t, err, "token signed by an unknown key")
}

func TestJWKSVerifierWithoutAudience(t *testing.T) {
	v, key := rsaVerifier(t, "")

	claims := validClaims()
	claims.Audience = nil
	_, err := v.Validate(signRS256(t, key, claims))
	assert.NoError(t, err)
}

func TestDiscoverJWKSURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_, _ = w.Write([]byte(`{"issuer":"x","jwks_uri":"https://id.broadcast.test/keys"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	uri, err := discoverJWKSURL(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "https://id.broadcast.test/keys", uri)

	_, err = discoverJWKSURL(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}

func TestNewJWKSVerifierRequiresIssuer(t *testing.T) {
	_, err := NewJWKSVerifier(&config.OIDCConfig{})
	assert.Error(t, err)
}
