package core

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"gardenwatch/internal/types"
)

// AuthMiddleware verifies the Bearer token on protected routes.
//
//  1. Extracts the token from the Authorization header.
//  2. Verifies the HS256 signature against the configured shared secret.
//  3. Parses the subject claim as the numeric user ID and injects it into
//     the request context via types.WithUserID.
//  4. Returns 401 with distinct error codes on failure:
//     - auth_token_missing: no Authorization header or empty Bearer token.
//     - auth_token_invalid: malformed token, bad signature, or bad subject.
//     - auth_token_expired: signature valid but the token has expired.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		userID, err := s.verifyToken(token)
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}

		ctx := types.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verifyToken checks the token signature and expiry and returns the user ID
// carried in the subject claim.
func (s *Server) verifyToken(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.Config.Auth.JWTSecret.Unmask()), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return 0, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token verification failed", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token subject is not a valid user id", err)
	}

	return userID, nil
}

// extractBearerToken parses the Authorization header value and returns the
// token string. It expects "Bearer <token>" (scheme case-insensitive per
// RFC 7235). Returns empty string if the format is invalid.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// handleAuthError inspects the verification error and writes the appropriate
// 401 response with the matching error code.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthTokenExpired {
		s.Logger.Warn("authentication failed: token expired",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		s.writeAuthError(w, r, types.ErrCodeAuthTokenExpired, "Authentication token has expired")
		return
	}

	s.Logger.Warn("authentication failed: token invalid",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
}

// writeAuthError writes a 401 Unauthorized JSON response with the given code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}
