package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Fatalf("expected wrong password to fail")
	}
	if CheckPassword("", "correct horse") {
		t.Fatalf("expected empty hash to fail")
	}
	if _, errShort := HashPassword("short"); !errors.Is(errShort, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", errShort)
	}
}

func TestUserTokenRoundTrip(t *testing.T) {
	token, err := IssueUserToken("s3cret", 42, true, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseUserToken("s3cret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || !claims.IsAdmin || claims.Subject != "42" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseUserToken_Rejects(t *testing.T) {
	valid, _ := IssueUserToken("s3cret", 42, false, time.Hour)
	expired, _ := IssueUserToken("s3cret", 42, false, -time.Minute)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, UserClaims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongAlg, _ := hs512.SignedString([]byte("s3cret"))

	cases := map[string]struct {
		secret string
		token  string
	}{
		"wrong secret": {secret: "other", token: valid},
		"expired":      {secret: "s3cret", token: expired},
		"wrong alg":    {secret: "s3cret", token: wrongAlg},
		"garbage":      {secret: "s3cret", token: "not.a.token"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, errParse := ParseUserToken(tc.secret, tc.token); !errors.Is(errParse, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", errParse)
			}
		})
	}

	if _, errParse := ParseUserToken("", valid); !errors.Is(errParse, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", errParse)
	}
}
