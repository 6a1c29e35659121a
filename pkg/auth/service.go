package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// AuthService resolves who is making a request.
type AuthService interface {
	// ResolveActor returns the actor for r. Claims are nil in dev-header mode.
	ResolveActor(r *http.Request) (string, *Claims, error)
}

// jwtAuthService requires a bearer token signed by a configured issuer.
type jwtAuthService struct {
	jwksClient JWKSClientInterface
	logger     *zap.Logger
}

// NewAuthService creates an AuthService that verifies bearer tokens.
func NewAuthService(jwksClient JWKSClientInterface, logger *zap.Logger) AuthService {
	return &jwtAuthService{
		jwksClient: jwksClient,
		logger:     logger.Named("auth"),
	}
}

func (s *jwtAuthService) ResolveActor(r *http.Request) (string, *Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		s.logger.Debug("No JWT found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return "", nil, ErrMissingAuthorization
	}

	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" || tokenString == "" {
		s.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return "", nil, ErrInvalidAuthFormat
	}

	claims, err := s.jwksClient.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		return "", nil, err
	}
	return claims.Subject, claims, nil
}

var _ AuthService = (*jwtAuthService)(nil)

// devAuthService trusts a request header. Local development only.
type devAuthService struct {
	header       string
	defaultActor string
}

// NewDevAuthService creates an AuthService that reads the actor from header,
// falling back to defaultActor.
func NewDevAuthService(header, defaultActor string) AuthService {
	return &devAuthService{header: header, defaultActor: defaultActor}
}

func (s *devAuthService) ResolveActor(r *http.Request) (string, *Claims, error) {
	if actor := strings.TrimSpace(r.Header.Get(s.header)); actor != "" {
		return actor, nil, nil
	}
	return s.defaultActor, nil, nil
}

var _ AuthService = (*devAuthService)(nil)
