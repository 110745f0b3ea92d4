package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"digistore/internal/models"
	"digistore/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DemoProductID is granted to every newly created account, whether it
// registered locally or arrived through a federated clerk sync.
const DemoProductID = "12e942d3-1091-43f0-b22c-33508096276b"

// AuthService handles registration, login, token validation, federated
// identity sync, and actor resolution for dual-convention routes.
type AuthService struct {
	userRepo     repositories.UserRepository
	entitlements repositories.EntitlementRepository
	jwtSecret    []byte
	tokenDurat   time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, entitlements repositories.EntitlementRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		entitlements: entitlements,
		jwtSecret:    []byte(jwtSecret),
		tokenDurat:   7 * 24 * time.Hour,
	}
}

// Register creates a local-password account, seeds the demo entitlement,
// and returns a fresh token.
func (s *AuthService) Register(email, password, name string) (string, *models.User, error) {
	if existing, err := s.userRepo.GetByEmail(email); err == nil && existing != nil {
		return "", nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		Role:         models.RoleUser,
		PasswordHash: string(hashed),
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return "", nil, ErrEmailTaken
		}
		return "", nil, fmt.Errorf("failed to register user: %w", err)
	}

	if err := s.entitlements.GrantAll(user.ID, []string{DemoProductID}); err != nil {
		return "", nil, fmt.Errorf("failed to seed demo entitlement: %w", err)
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login authenticates a local-password account and returns a token.
func (s *AuthService) Login(email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ClerkSync creates or updates a user from a federated Clerk identity. The
// first sync for a clerk id creates the account and seeds the demo
// entitlement; later syncs refresh name, email, and profile image but never
// touch the ledger. Returns whether the user was created.
func (s *AuthService) ClerkSync(clerkID, email, name, profileImageURL string) (*models.User, bool, error) {
	existing, err := s.userRepo.GetByClerkID(clerkID)
	if err == nil {
		existing.Name = name
		existing.Email = email
		if profileImageURL != "" {
			existing.ProfileImageURL = profileImageURL
		}
		if err := s.userRepo.Update(existing); err != nil {
			return nil, false, fmt.Errorf("failed to update synced user: %w", err)
		}
		return existing, false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, err
	}

	user := &models.User{
		ID:              uuid.New().String(),
		Email:           email,
		Name:            name,
		Role:            models.RoleUser,
		ClerkID:         &clerkID,
		ProfileImageURL: profileImageURL,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, false, fmt.Errorf("failed to create synced user: %w", err)
	}
	if err := s.entitlements.GrantAll(user.ID, []string{DemoProductID}); err != nil {
		return nil, false, fmt.Errorf("failed to seed demo entitlement: %w", err)
	}
	return user, true, nil
}

// SeedAdmin creates the admin account if it does not exist yet. Returns
// false when an account with that email was already present.
func (s *AuthService) SeedAdmin(email, password, name string) (bool, error) {
	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return false, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		Role:         models.RoleAdmin,
		PasswordHash: string(hashed),
	}
	if err := s.userRepo.Create(admin); err != nil {
		return false, fmt.Errorf("failed to seed admin user: %w", err)
	}
	return true, nil
}

// GenerateToken issues a signed bearer token for the user.
func (s *AuthService) GenerateToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(s.tokenDurat).Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a bearer token and returns the subject
// user id. Expiry is reported distinctly from every other validation
// failure so bearer-required routes can answer precisely.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// CurrentUser resolves a bearer token to its user record.
func (s *AuthService) CurrentUser(tokenString string) (*models.User, error) {
	userID, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(userID)
}

// ResolveActor maps a request to an actor using the two credential schemes
// in fixed priority order: the bearer header first (inspected only, never
// failing the request by itself), then the clerk id from the parsed body.
// Header identity wins when both resolve.
func (s *AuthService) ResolveActor(authHeader, clerkID string) (*Actor, error) {
	if token, ok := BearerToken(authHeader); ok {
		if userID, err := s.ValidateToken(token); err == nil {
			if user, err := s.userRepo.GetByID(userID); err == nil {
				return &Actor{User: user, Source: ActorSourceBearer}, nil
			}
		}
		// A broken or stale header falls through to the federated scheme.
	}
	if clerkID != "" {
		user, err := s.userRepo.GetByClerkID(clerkID)
		if err != nil {
			return nil, err
		}
		return &Actor{User: user, Source: ActorSourceFederated}, nil
	}
	return nil, ErrAuthRequired
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authHeader string) (string, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
