// Package accounts holds the registration and login rules. The service is
// stateless; every outcome of an operation is either the stored record or
// one of the package's sentinel errors, so callers can map failures
// exhaustively.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plaza-social/plaza/internal/app/domain/account"
	"github.com/plaza-social/plaza/internal/app/storage"
	"github.com/plaza-social/plaza/pkg/logger"
)

// Registration failure modes, checked in declaration order. The first rule
// violated decides the error; later rules are not evaluated.
var (
	ErrUsernameMissing  = errors.New("username is required")
	ErrUsernameBlank    = errors.New("username must not be blank")
	ErrUsernameReserved = errors.New("username is already taken")
	ErrPasswordMissing  = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 4 characters")
)

// Login failure modes.
var (
	ErrLoginUsernameMissing = errors.New("login username is required")
	ErrLoginPasswordMissing = errors.New("login password is required")
	ErrNoAccountFound       = errors.New("no account matches the given credentials")
)

// minPasswordLength counts UTF-16 code units, matching the wire contract
// clients validate against.
const minPasswordLength = 4

// RegisterTemplate carries the client-supplied fields of a registration
// request. Nil pointers model fields absent from the request body.
type RegisterTemplate struct {
	Username *string
	Password *string
}

// Credentials carries a login attempt.
type Credentials struct {
	Username *string
	Password *string
}

// Service applies account rules on top of a storage gateway.
type Service struct {
	store storage.Gateway
	log   *logger.Logger
}

// New constructs an account service.
func New(store storage.Gateway, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{store: store, log: log}
}

// Register validates tpl and persists a new account. The reservation check
// and the insert run in one unit of work; the storage layer's unique
// constraint is the authoritative guard, so a lost race still comes back
// as ErrUsernameReserved.
func (s *Service) Register(ctx context.Context, tpl RegisterTemplate) (account.Account, error) {
	if tpl.Username == nil {
		return account.Account{}, ErrUsernameMissing
	}
	if strings.TrimSpace(*tpl.Username) == "" {
		return account.Account{}, ErrUsernameBlank
	}

	var created account.Account
	err := s.store.InTransaction(ctx, func(g storage.Gateway) error {
		reserved, err := g.UsernameReserved(ctx, *tpl.Username)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if reserved {
			return ErrUsernameReserved
		}
		if tpl.Password == nil {
			return ErrPasswordMissing
		}
		if utf16Len(*tpl.Password) < minPasswordLength {
			return ErrPasswordTooShort
		}

		created, err = g.CreateAccount(ctx, account.Account{
			Username: *tpl.Username,
			Password: *tpl.Password,
		})
		if errors.Is(err, storage.ErrUsernameTaken) {
			return ErrUsernameReserved
		}
		return err
	})
	if err != nil {
		return account.Account{}, err
	}

	s.log.WithField("account_id", created.ID).Info("account registered")
	return created, nil
}

// Login resolves creds to the matching account. Both fields must be present
// and match a stored record exactly; when several records somehow match,
// the one with the lowest id wins.
func (s *Service) Login(ctx context.Context, creds Credentials) (account.Account, error) {
	if creds.Username == nil {
		return account.Account{}, ErrLoginUsernameMissing
	}
	if creds.Password == nil {
		return account.Account{}, ErrLoginPasswordMissing
	}

	acct, err := s.store.FindByCredentials(ctx, *creds.Username, *creds.Password)
	if errors.Is(err, storage.ErrNotFound) {
		return account.Account{}, ErrNoAccountFound
	}
	if err != nil {
		return account.Account{}, err
	}

	s.log.WithField("account_id", acct.ID).Info("account logged in")
	return acct, nil
}

// utf16Len reports the length of s in UTF-16 code units; supplementary
// runes encode as surrogate pairs and count twice.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}
