// Package service implements the business logic behind the REST API:
// authentication, user management and lesson scheduling. The room
// coordinator only consumes its credential verification.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/dan-kuzbass/chess-stars/backend/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const tokenLifetime = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users     repository.UserRepo
	jwtSecret []byte
	logger    zerolog.Logger
}

func NewAuthService(users repository.UserRepo, jwtSecret string, logger *zerolog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

// Login validates credentials and returns a signed token. A username
// that does not exist yet is registered on the spot as a student
// account, first login doubles as sign-up.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, errors.Join(errors.New("unable to look up user"), err)
	}
	if user == nil {
		user, err = s.register(ctx, username, password)
		if err != nil {
			return "", nil, err
		}
	} else if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.sign(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) register(ctx context.Context, username, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         model.RoleStudent,
	}
	if err = s.users.Create(ctx, user); err != nil {
		return nil, errors.Join(errors.New("unable to create user"), err)
	}
	s.logger.Info().
		Str("userID", user.ID).
		Str("username", username).
		Msg("registered new student account")
	return user, nil
}

func (s *AuthService) sign(user *model.User) (string, error) {
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify is the credential collaborator consumed by the websocket
// transport: opaque credential in, verified room identity out.
func (s *AuthService) Verify(tokenString string) (model.Participant, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return model.Participant{}, err
	}
	role := claims.Role
	if role == model.RoleAdmin {
		role = model.RoleTrainer
	}
	return model.Participant{
		Identity:    claims.UserID,
		DisplayName: claims.Username,
		Role:        role,
	}, nil
}
