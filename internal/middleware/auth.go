package middleware

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/tandemhq/tandem-api/internal/database"
	"github.com/tandemhq/tandem-api/internal/models"
	"github.com/tandemhq/tandem-api/internal/request"
)

// Auth creates authentication middleware that validates bearer tokens issued
// by the auth service (HS256, shared secret). On first sight of a subject the
// user row is created; later requests keep email and name in sync with the
// token claims.
func Auth(db *database.DB, secret []byte, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			token, err := jwt.Parse([]byte(parts[1]),
				jwt.WithKey(jwa.HS256, secret),
				jwt.WithValidate(true),
				jwt.WithIssuer(issuer),
			)
			if err != nil {
				log.Printf("Token verification failed: %v (issuer: %s)", err, issuer)
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			claims := claimsFromToken(token)
			if claims.Sub == "" {
				respondError(w, http.StatusUnauthorized, "Token has no subject")
				return
			}
			userID, err := uuid.Parse(claims.Sub)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Token subject is not a user ID")
				return
			}

			ctx := r.Context()
			userRepo := database.NewUserRepository(db)
			user, err := userRepo.GetByID(ctx, userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					user = &models.User{
						ID:    userID,
						Email: claims.Email,
					}
					if claims.Name != "" {
						name := claims.Name
						user.Name = &name
					}
					if err := userRepo.Create(ctx, user); err != nil {
						respondError(w, http.StatusInternalServerError, "Failed to create user")
						return
					}
				} else {
					log.Printf("Database error while fetching user: %v", err)
					respondError(w, http.StatusInternalServerError, "Database error")
					return
				}
			} else {
				updateNeeded := false
				if claims.Email != "" && user.Email != claims.Email {
					user.Email = claims.Email
					updateNeeded = true
				}
				if claims.Name != "" && (user.Name == nil || *user.Name != claims.Name) {
					name := claims.Name
					user.Name = &name
					updateNeeded = true
				}
				if updateNeeded {
					if err := userRepo.Update(ctx, user); err != nil {
						log.Printf("Failed to sync user claims: %v", err)
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

func claimsFromToken(token jwt.Token) models.JWTClaims {
	claims := models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
	}
	if v, ok := token.Get("email"); ok {
		if s, ok := v.(string); ok {
			claims.Email = s
		}
	}
	if v, ok := token.Get("name"); ok {
		if s, ok := v.(string); ok {
			claims.Name = s
		}
	}
	return claims
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
