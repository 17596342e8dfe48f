package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const (
	userOwnerKey ctxKey = iota
	sessionOwnerKey
	requestIDKey
)

const (
	SessionHeader   = "X-Session-ID"
	RequestIDHeader = "X-Request-ID"
)

// Claims carried by storefront access tokens. Role is "user" or "guest";
// tokens without a role are classified by their subject.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// OwnerMiddleware resolves who the request acts for. A valid bearer token
// yields the user owner (or a session owner for guest tokens), the session
// header yields the session owner. A malformed or expired token is rejected.
func OwnerMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if sid := strings.TrimSpace(r.Header.Get(SessionHeader)); sid != "" {
				ctx = context.WithValue(ctx, sessionOwnerKey, domain.SessionOwner(sid))
			}

			if raw, ok := bearerToken(r); ok {
				owner, err := parseToken(raw, secret)
				if err != nil {
					respondError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
					return
				}
				if owner.IsUser() {
					ctx = context.WithValue(ctx, userOwnerKey, owner)
				} else if _, ok := ctx.Value(sessionOwnerKey).(domain.Owner); !ok {
					ctx = context.WithValue(ctx, sessionOwnerKey, owner)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}

func parseToken(raw string, secret []byte) (domain.Owner, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Owner{}, err
	}
	if claims.Subject == "" {
		return domain.Owner{}, errors.New("token has no subject")
	}

	switch claims.Role {
	case "user":
		return domain.UserOwner(claims.Subject), nil
	case "guest":
		return domain.SessionOwner(claims.Subject), nil
	default:
		return domain.ResolveOwner(claims.Subject), nil
	}
}

func userOwnerFromContext(ctx context.Context) (domain.Owner, bool) {
	o, ok := ctx.Value(userOwnerKey).(domain.Owner)
	return o, ok
}

func sessionOwnerFromContext(ctx context.Context) (domain.Owner, bool) {
	o, ok := ctx.Value(sessionOwnerKey).(domain.Owner)
	return o, ok
}

// requestOwner prefers the authenticated user over the session.
func requestOwner(ctx context.Context) (domain.Owner, bool) {
	if o, ok := userOwnerFromContext(ctx); ok {
		return o, true
	}
	return sessionOwnerFromContext(ctx)
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", getRequestID(r.Context()),
			)
		})
	}
}
