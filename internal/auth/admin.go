package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leoconnect/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrAdminInvalidCredentials covers both unknown accounts and wrong
	// passwords so callers cannot distinguish the two.
	ErrAdminInvalidCredentials = errors.New("auth: invalid admin credentials")
)

// AdminAuthenticatorConfig describes the admin login dependencies. The
// issuer must be dedicated to the admin audience so admin tokens never pass
// user-token validation.
type AdminAuthenticatorConfig struct {
	Database *gorm.DB
	Issuer   *TokenIssuer
	Clock    func() time.Time
}

// AdminAuthenticator verifies admin credentials against stored bcrypt hashes
// and mints short-lived admin session tokens.
type AdminAuthenticator struct {
	db     *gorm.DB
	issuer *TokenIssuer
	now    func() time.Time
}

// NewAdminAuthenticator constructs the authenticator.
func NewAdminAuthenticator(cfg AdminAuthenticatorConfig) (*AdminAuthenticator, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("auth: database connection required")
	}
	if cfg.Issuer == nil {
		return nil, fmt.Errorf("auth: admin token issuer required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AdminAuthenticator{db: cfg.Database, issuer: cfg.Issuer, now: clock}, nil
}

// AdminSession is the result of a successful admin login.
type AdminSession struct {
	Token       string `json:"token"`
	ExpiresIn   int64  `json:"expiresIn"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Login checks the credentials and returns a signed admin token.
func (a *AdminAuthenticator) Login(ctx context.Context, email, password string) (AdminSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AdminSession{}, ErrAdminInvalidCredentials
	}

	var account model.AdminAccount
	err := a.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AdminSession{}, ErrAdminInvalidCredentials
		}
		return AdminSession{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return AdminSession{}, ErrAdminInvalidCredentials
	}

	token, expiresIn, err := a.issuer.IssueForSubject(ctx, account.Email)
	if err != nil {
		return AdminSession{}, err
	}
	return AdminSession{
		Token:       token,
		ExpiresIn:   expiresIn,
		Email:       account.Email,
		DisplayName: account.DisplayName,
	}, nil
}

// Validate checks an admin token and returns the account it names.
func (a *AdminAuthenticator) Validate(ctx context.Context, token string) (model.AdminAccount, error) {
	subject, err := a.issuer.ValidateToken(token)
	if err != nil {
		return model.AdminAccount{}, err
	}
	var account model.AdminAccount
	err = a.db.WithContext(ctx).Where("email = ?", subject).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.AdminAccount{}, ErrAdminInvalidCredentials
		}
		return model.AdminAccount{}, err
	}
	return account, nil
}

// EnsureAccount creates or updates an admin account with a freshly hashed
// password. Used by provisioning, never by request handlers.
func (a *AdminAuthenticator) EnsureAccount(ctx context.Context, email, password, displayName string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("auth: admin email required")
	}
	if len(password) < 12 {
		return fmt.Errorf("auth: admin password must be at least 12 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := a.now().UTC()
	account := model.AdminAccount{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return a.db.WithContext(ctx).Save(&account).Error
}
