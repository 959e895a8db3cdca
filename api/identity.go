package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/agency-booking/booking"
)

// ActorHeader carries the acting identity when no JWT secret is configured.
const ActorHeader = "X-Actor-ID"

type actorKey struct{}

// WithActor stores the acting identity on the context.
func WithActor(ctx context.Context, actor booking.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting identity set by the identity middleware.
func ActorFrom(ctx context.Context) (booking.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(booking.Actor)
	if !ok || !actor.Valid() {
		return "", false
	}
	return actor, true
}

// Identity resolves who is acting on each request.
//
// With a secret, a Bearer HS256 token is required and its "sub" claim is the
// actor. Without one, the X-Actor-ID header is trusted as-is (an upstream
// gateway is expected to set it). Requests without an identity pass through;
// mutating handlers reject them.
func Identity(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				if v := strings.TrimSpace(r.Header.Get(ActorHeader)); v != "" {
					r = r.WithContext(WithActor(r.Context(), booking.Actor(v)))
				}
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", errors.New("expected a Bearer token"))
				return
			}
			actor, err := parseActor(raw, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func parseActor(raw string, secret []byte) (booking.Actor, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	actor := booking.Actor(sub)
	if !actor.Valid() {
		return "", errors.New("token has no subject")
	}
	return actor, nil
}

// IssueToken signs an HS256 token for actor. Used by tooling and tests.
func IssueToken(secret []byte, actor booking.Actor, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = actor.String()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
