package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/stagepass/backend/internal/models"
)

var (
	// ErrDuplicateUsername is returned when registering a username that already exists.
	ErrDuplicateUsername = errors.New("username already taken")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrAccountSuspended  = errors.New("account suspended")
	ErrWeakPassword      = errors.New("password must be at least 4 characters")
)

// Store is what the auth service needs from the account repository.
type Store interface {
	Create(ctx context.Context, a *models.Account) error
	GetByAddress(ctx context.Context, address string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	UpdatePassword(ctx context.Context, address, passwordHash string) error
}

type Service interface {
	RegisterCustomer(ctx context.Context, username, password string) (*models.Account, error)
	Login(ctx context.Context, username, password string) (string, *models.Account, error)
	ValidateToken(ctx context.Context, token string) (string, models.Role, error)
	ChangePassword(ctx context.Context, account *models.Account, current, next string) error
}

type service struct {
	store  Store
	secret []byte
	ttl    time.Duration
}

func NewService(store Store, secret string, ttl time.Duration) *service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{store: store, secret: []byte(secret), ttl: ttl}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

// RegisterCustomer is the open signup path. Staff tiers are provisioned by
// their managers, never here.
func (s *service) RegisterCustomer(ctx context.Context, username, password string) (*models.Account, error) {
	if len(password) < 4 {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	address, err := models.NewAddress()
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		Address:      address,
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleCustomer,
		IsActive:     true,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, username, password string) (string, *models.Account, error) {
	acc, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredential
	}
	if !acc.IsActive {
		return "", nil, ErrAccountSuspended
	}
	token, err := s.issueToken(acc.Address, acc.Role)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

func (s *service) issueToken(address string, role models.Role) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (string, models.Role, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return "", "", errors.New("invalid token")
	}
	return c.Subject, c.Role, nil
}

func (s *service) ChangePassword(ctx context.Context, account *models.Account, current, next string) error {
	if len(next) < 4 {
		return ErrWeakPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredential
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, account.Address, string(hash))
}
