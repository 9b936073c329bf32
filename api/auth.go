/*
auth.go - JWT identity middleware

PURPOSE:
  Resolves the caller's identity from a Bearer token and attaches a
  store-scoped ledger.Identity to the request context. Every /api route runs
  behind this middleware; handlers never see a request without a store.

TOKEN SHAPE:
  HMAC-SHA256 signed, claims: uid (user id), exp, iat. The user's store is
  looked up per request, not embedded in the token, so tokens survive store
  renames.

SCOPE:
  Token issuance and password handling live outside this service. MintToken
  exists for tests and ops tooling.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/buildmart/ledger-engine/ledger"
)

type contextKey string

const identityKey contextKey = "identity"

// MintToken signs a token for the given user, valid for ttl.
func MintToken(secret string, userID ledger.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"uid": string(userID),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// parseToken validates the token and returns the user ID it names.
func parseToken(secret, tokenString string) (ledger.UserID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ledger.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ledger.ErrUnauthorized
	}
	uid, _ := claims["uid"].(string)
	if uid == "" {
		return "", ledger.ErrUnauthorized
	}
	return ledger.UserID(uid), nil
}

// Authenticator parses the Bearer token, resolves the user's store and
// injects the resulting Identity into the request context. Requests without
// a valid token, or whose user owns no store, get 401.
func Authenticator(secret string, shops ledger.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}

			userID, err := parseToken(secret, tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}

			shop, err := shops.ShopByUser(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}

			id := ledger.Identity{UserID: userID, StoreID: shop.ID}
			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFrom extracts the Identity placed by Authenticator.
func identityFrom(ctx context.Context) (ledger.Identity, bool) {
	id, ok := ctx.Value(identityKey).(ledger.Identity)
	return id, ok
}
