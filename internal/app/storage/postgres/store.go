// Package postgres implements the storage gateway backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/plaza-social/plaza/internal/app/domain/account"
	"github.com/plaza-social/plaza/internal/app/domain/message"
	"github.com/plaza-social/plaza/internal/app/storage"
)

// uniqueViolation is the PostgreSQL error code raised when an insert trips
// a unique constraint.
const uniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx, so the same query
// methods serve plain and transactional stores.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Gateway using the provided database handle.
type Store struct {
	db *sql.DB
	q  querier
}

var _ storage.Gateway = (*Store)(nil)

// New creates a Store over db.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// InTransaction opens a transaction and runs fn against a store bound to
// it. fn returning an error rolls the transaction back; otherwise it is
// committed. A store already inside a transaction joins it.
func (s *Store) InTransaction(ctx context.Context, fn func(storage.Gateway) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- AccountStore -----------------------------------------------------------

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO accounts (username, password)
		VALUES ($1, $2)
		RETURNING account_id
	`, acct.Username, acct.Password).Scan(&acct.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return account.Account{}, storage.ErrUsernameTaken
		}
		return account.Account{}, err
	}
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (account.Account, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT account_id, username, password
		FROM accounts
		WHERE account_id = $1
	`, id)

	var acct account.Account
	if err := row.Scan(&acct.ID, &acct.Username, &acct.Password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, storage.ErrNotFound
		}
		return account.Account{}, err
	}
	return acct, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT account_id, username, password
		FROM accounts
		ORDER BY account_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []account.Account
	for rows.Next() {
		var acct account.Account
		if err := rows.Scan(&acct.ID, &acct.Username, &acct.Password); err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, rows.Err()
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		DELETE FROM accounts WHERE account_id = $1
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) UsernameReserved(ctx context.Context, username string) (bool, error) {
	var reserved bool
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)
	`, username).Scan(&reserved)
	return reserved, err
}

func (s *Store) AccountExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (s *Store) FindByCredentials(ctx context.Context, username, password string) (account.Account, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT account_id, username, password
		FROM accounts
		WHERE username = $1 AND password = $2
		ORDER BY account_id
		LIMIT 1
	`, username, password)

	var acct account.Account
	if err := row.Scan(&acct.ID, &acct.Username, &acct.Password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, storage.ErrNotFound
		}
		return account.Account{}, err
	}
	return acct, nil
}

// --- MessageStore -----------------------------------------------------------

func (s *Store) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO messages (posted_by, message_text, time_posted_epoch)
		VALUES ($1, $2, $3)
		RETURNING message_id
	`, msg.PostedBy, msg.MessageText, msg.TimePostedEpoch).Scan(&msg.ID)
	if err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

func (s *Store) UpdateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE messages
		SET posted_by = $2, message_text = $3, time_posted_epoch = $4
		WHERE message_id = $1
	`, msg.ID, msg.PostedBy, msg.MessageText, msg.TimePostedEpoch)
	if err != nil {
		return message.Message{}, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return message.Message{}, err
	}
	if rows == 0 {
		return message.Message{}, storage.ErrNotFound
	}
	return msg, nil
}

func (s *Store) GetMessage(ctx context.Context, id int64) (message.Message, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT message_id, posted_by, message_text, time_posted_epoch
		FROM messages
		WHERE message_id = $1
	`, id)

	var msg message.Message
	if err := row.Scan(&msg.ID, &msg.PostedBy, &msg.MessageText, &msg.TimePostedEpoch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return message.Message{}, storage.ErrNotFound
		}
		return message.Message{}, err
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context) ([]message.Message, error) {
	return s.queryMessages(ctx, `
		SELECT message_id, posted_by, message_text, time_posted_epoch
		FROM messages
		ORDER BY message_id
	`)
}

func (s *Store) ListMessagesByAuthor(ctx context.Context, accountID int64) ([]message.Message, error) {
	return s.queryMessages(ctx, `
		SELECT message_id, posted_by, message_text, time_posted_epoch
		FROM messages
		WHERE posted_by = $1
		ORDER BY message_id
	`, accountID)
}

func (s *Store) DeleteMessage(ctx context.Context, id int64) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		DELETE FROM messages WHERE message_id = $1
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]message.Message, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]message.Message, 0)
	for rows.Next() {
		var msg message.Message
		if err := rows.Scan(&msg.ID, &msg.PostedBy, &msg.MessageText, &msg.TimePostedEpoch); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
