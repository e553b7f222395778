package storage

import (
	"context"
	"errors"

	"github.com/plaza-social/plaza/internal/app/domain/account"
	"github.com/plaza-social/plaza/internal/app/domain/message"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned by CreateAccount when the username is
// already in use. The storage layer is the authoritative uniqueness guard:
// the pre-insert reservation check in the service can race, the constraint
// here cannot.
var ErrUsernameTaken = errors.New("username already taken")

// AccountStore persists account records.
type AccountStore interface {
	// CreateAccount inserts the account and assigns an id when acct.ID is
	// zero. Returns ErrUsernameTaken on a username collision.
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id int64) (account.Account, error)
	ListAccounts(ctx context.Context) ([]account.Account, error)
	// DeleteAccount reports whether a row was removed. No cascade: messages
	// authored by the account stay behind.
	DeleteAccount(ctx context.Context, id int64) (bool, error)

	// UsernameReserved is an indexed existence check on the username column.
	UsernameReserved(ctx context.Context, username string) (bool, error)
	// AccountExists reports whether an account with the given id exists.
	AccountExists(ctx context.Context, id int64) (bool, error)
	// FindByCredentials returns the account whose username and password both
	// equal the supplied values exactly. If storage ever held more than one
	// match the lowest id wins, so the result is deterministic either way.
	FindByCredentials(ctx context.Context, username, password string) (account.Account, error)
}

// MessageStore persists message records.
type MessageStore interface {
	// CreateMessage inserts the message and assigns an id when msg.ID is zero.
	CreateMessage(ctx context.Context, msg message.Message) (message.Message, error)
	// UpdateMessage rewrites the row identified by msg.ID in full.
	UpdateMessage(ctx context.Context, msg message.Message) (message.Message, error)
	GetMessage(ctx context.Context, id int64) (message.Message, error)
	ListMessages(ctx context.Context) ([]message.Message, error)
	ListMessagesByAuthor(ctx context.Context, accountID int64) ([]message.Message, error)
	DeleteMessage(ctx context.Context, id int64) (bool, error)
}

// Gateway is the full persistence contract the rule engines program
// against: both stores plus a transactional unit of work.
type Gateway interface {
	AccountStore
	MessageStore

	// InTransaction runs fn against a gateway whose effects either all
	// commit or all roll back. fn returning an error rolls back and the
	// error is passed through unchanged. Calls nested inside a running
	// transaction join it rather than opening a new one.
	InTransaction(ctx context.Context, fn func(Gateway) error) error
}
