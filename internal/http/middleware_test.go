package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOwners runs the owner middleware and reports what the handler saw.
func captureOwners(t *testing.T, headers map[string]string) (*httptest.ResponseRecorder, *domain.Owner, *domain.Owner) {
	t.Helper()
	var user, session *domain.Owner
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o, ok := userOwnerFromContext(r.Context()); ok {
			user = &o
		}
		if o, ok := sessionOwnerFromContext(r.Context()); ok {
			session = &o
		}
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	OwnerMiddleware([]byte(testSecret))(next).ServeHTTP(rec, req)
	return rec, user, session
}

func TestOwnerMiddleware_UserToken(t *testing.T) {
	token := signToken(t, testSecret, testUserID, "user", time.Hour)
	rec, user, session := captureOwners(t, map[string]string{"Authorization": "Bearer " + token})

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, domain.UserOwner(testUserID), *user)
	assert.Nil(t, session)
}

func TestOwnerMiddleware_GuestToken(t *testing.T) {
	token := signToken(t, testSecret, "guest_123", "guest", time.Hour)
	_, user, session := captureOwners(t, map[string]string{"Authorization": "Bearer " + token})

	assert.Nil(t, user)
	require.NotNil(t, session)
	assert.Equal(t, domain.SessionOwner("guest_123"), *session)
}

func TestOwnerMiddleware_RolelessTokenResolvesSubject(t *testing.T) {
	token := signToken(t, testSecret, testUserID, "", time.Hour)
	_, user, _ := captureOwners(t, map[string]string{"Authorization": "Bearer " + token})
	require.NotNil(t, user)
	assert.Equal(t, testUserID, user.ID)

	token = signToken(t, testSecret, "device-42", "", time.Hour)
	_, user, session := captureOwners(t, map[string]string{"Authorization": "Bearer " + token})
	assert.Nil(t, user)
	require.NotNil(t, session)
	assert.Equal(t, domain.SessionOwner("device-42"), *session)
}

func TestOwnerMiddleware_SessionHeaderWinsOverGuestToken(t *testing.T) {
	token := signToken(t, testSecret, "guest_token", "guest", time.Hour)
	_, _, session := captureOwners(t, map[string]string{
		"Authorization": "Bearer " + token,
		SessionHeader:   "guest_header",
	})

	require.NotNil(t, session)
	assert.Equal(t, "guest_header", session.ID)
}

func TestOwnerMiddleware_RejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other-secret", testUserID, "user", time.Hour)},
		{"expired", signToken(t, testSecret, testUserID, "user", -time.Minute)},
		{"no subject", signToken(t, testSecret, "", "user", time.Hour)},
		{"garbage", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, user, _ := captureOwners(t, map[string]string{"Authorization": "Bearer " + tt.token})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, user)
		})
	}
}

func TestOwnerMiddleware_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{Role: "user", RegisteredClaims: jwt.RegisteredClaims{Subject: testUserID}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, _, _ := captureOwners(t, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerMiddleware_Anonymous(t *testing.T) {
	rec, user, session := captureOwners(t, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, user)
	assert.Nil(t, session)
}

func TestRequestIDMiddleware_EchoesHeader(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getRequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-fixed")
	rec := httptest.NewRecorder()
	RequestIDMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, "req-fixed", seen)
	assert.Equal(t, "req-fixed", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDMiddleware_Generates(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getRequestID(r.Context())
	})

	rec := httptest.NewRecorder()
	RequestIDMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}
