package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	UploadTokenCookie  = "upload_token"
	uploadTokenSubject = "uploader"
)

var (
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrInvalidUploadToken = errors.New("invalid upload token")
)

// UploadGate guards crow uploads behind a shared password. A correct
// password earns a short-lived signed cookie.
type UploadGate struct {
	password     string
	secret       []byte
	expiry       time.Duration
	isProduction bool
	now          func() time.Time
}

func NewUploadGate(password, secret string, expiry time.Duration, isProduction bool) *UploadGate {
	return &UploadGate{
		password:     password,
		secret:       []byte(secret),
		expiry:       expiry,
		isProduction: isProduction,
		now:          time.Now,
	}
}

// CheckPassword accepts either a bcrypt hash or a plain value in the
// configured password. Only a well-formed $2a$/$2b$/$2y$ hash is treated as
// bcrypt; anything else, "$2..." included, is compared as plain text. An
// unset password rejects everything.
func (g *UploadGate) CheckPassword(password string) error {
	if g.password == "" || password == "" {
		return ErrIncorrectPassword
	}

	if isBcryptHash(g.password) {
		err := bcrypt.CompareHashAndPassword([]byte(g.password), []byte(password))
		if err != nil {
			return ErrIncorrectPassword
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(g.password), []byte(password)) != 1 {
		return ErrIncorrectPassword
	}
	return nil
}

func (g *UploadGate) IssueToken() (string, time.Time, error) {
	now := g.now()
	expiresAt := now.Add(g.expiry)

	claims := jwt.RegisteredClaims{
		Subject:   uploadTokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

func (g *UploadGate) VerifyToken(tokenString string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithTimeFunc(g.now), jwt.WithSubject(uploadTokenSubject))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUploadToken, err)
	}

	if !token.Valid {
		return ErrInvalidUploadToken
	}

	return nil
}

// SetTokenCookie stores the token for the cross-origin frontend, so
// production cookies are SameSite=None and Secure.
func (g *UploadGate) SetTokenCookie(w http.ResponseWriter, token string, expiry time.Time) {
	sameSite := http.SameSiteLaxMode
	if g.isProduction {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     UploadTokenCookie,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.isProduction,
		SameSite: sameSite,
	})
}

func isBcryptHash(s string) bool {
	if !strings.HasPrefix(s, "$2a$") && !strings.HasPrefix(s, "$2b$") && !strings.HasPrefix(s, "$2y$") {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
