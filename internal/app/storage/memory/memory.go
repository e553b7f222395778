// Package memory provides a thread-safe in-memory implementation of the
// storage gateway. It is intended for tests and for running the service
// without a database, and deliberately keeps the implementation simple.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/plaza-social/plaza/internal/app/domain/account"
	"github.com/plaza-social/plaza/internal/app/domain/message"
	"github.com/plaza-social/plaza/internal/app/storage"
)

// Memory implements storage.Gateway over two maps.
type Memory struct {
	mu sync.RWMutex
	st state
}

type state struct {
	nextAccountID int64
	nextMessageID int64
	accounts      map[int64]account.Account
	messages      map[int64]message.Message
}

var _ storage.Gateway = (*Memory)(nil)

// New creates an empty in-memory gateway.
func New() *Memory {
	return &Memory{st: state{
		nextAccountID: 1,
		nextMessageID: 1,
		accounts:      make(map[int64]account.Account),
		messages:      make(map[int64]message.Message),
	}}
}

// InTransaction runs fn under the write lock against an unlocked view of
// the state. A snapshot is taken first and restored when fn fails, so a
// failed unit of work leaves no partial writes behind.
func (m *Memory) InTransaction(_ context.Context, fn func(storage.Gateway) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txView{st: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (s state) clone() state {
	out := state{
		nextAccountID: s.nextAccountID,
		nextMessageID: s.nextMessageID,
		accounts:      make(map[int64]account.Account, len(s.accounts)),
		messages:      make(map[int64]message.Message, len(s.messages)),
	}
	for id, acct := range s.accounts {
		out.accounts[id] = acct
	}
	for id, msg := range s.messages {
		out.messages[id] = msg
	}
	return out
}

// txView is the gateway handed to InTransaction callbacks. It touches the
// state directly; the caller already holds the write lock.
type txView struct {
	st *state
}

var _ storage.Gateway = (*txView)(nil)

// InTransaction on a view joins the transaction already in flight.
func (v *txView) InTransaction(_ context.Context, fn func(storage.Gateway) error) error {
	return fn(v)
}

// AccountStore --------------------------------------------------------------

func (m *Memory) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createAccount(acct)
}

func (v *txView) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	return v.st.createAccount(acct)
}

func (s *state) createAccount(acct account.Account) (account.Account, error) {
	for _, existing := range s.accounts {
		if existing.Username == acct.Username && existing.ID != acct.ID {
			return account.Account{}, storage.ErrUsernameTaken
		}
	}
	if acct.ID == 0 {
		acct.ID = s.nextAccountID
		s.nextAccountID++
	} else if acct.ID >= s.nextAccountID {
		s.nextAccountID = acct.ID + 1
	}
	s.accounts[acct.ID] = acct
	return acct, nil
}

func (m *Memory) GetAccount(ctx context.Context, id int64) (account.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getAccount(id)
}

func (v *txView) GetAccount(_ context.Context, id int64) (account.Account, error) {
	return v.st.getAccount(id)
}

func (s *state) getAccount(id int64) (account.Account, error) {
	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	return acct, nil
}

func (m *Memory) ListAccounts(ctx context.Context) ([]account.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listAccounts()
}

func (v *txView) ListAccounts(_ context.Context) ([]account.Account, error) {
	return v.st.listAccounts()
}

func (s *state) listAccounts() ([]account.Account, error) {
	result := make([]account.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		result = append(result, acct)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) DeleteAccount(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteAccount(id)
}

func (v *txView) DeleteAccount(_ context.Context, id int64) (bool, error) {
	return v.st.deleteAccount(id)
}

func (s *state) deleteAccount(id int64) (bool, error) {
	if _, ok := s.accounts[id]; !ok {
		return false, nil
	}
	delete(s.accounts, id)
	return true, nil
}

func (m *Memory) UsernameReserved(ctx context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.usernameReserved(username)
}

func (v *txView) UsernameReserved(_ context.Context, username string) (bool, error) {
	return v.st.usernameReserved(username)
}

func (s *state) usernameReserved(username string) (bool, error) {
	for _, acct := range s.accounts {
		if acct.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) AccountExists(ctx context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.st.accounts[id]
	return ok, nil
}

func (v *txView) AccountExists(_ context.Context, id int64) (bool, error) {
	_, ok := v.st.accounts[id]
	return ok, nil
}

func (m *Memory) FindByCredentials(ctx context.Context, username, password string) (account.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findByCredentials(username, password)
}

func (v *txView) FindByCredentials(_ context.Context, username, password string) (account.Account, error) {
	return v.st.findByCredentials(username, password)
}

func (s *state) findByCredentials(username, password string) (account.Account, error) {
	var (
		best  account.Account
		found bool
	)
	for _, acct := range s.accounts {
		if acct.Username != username || acct.Password != password {
			continue
		}
		if !found || acct.ID < best.ID {
			best = acct
			found = true
		}
	}
	if !found {
		return account.Account{}, storage.ErrNotFound
	}
	return best, nil
}

// MessageStore --------------------------------------------------------------

func (m *Memory) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createMessage(msg)
}

func (v *txView) CreateMessage(_ context.Context, msg message.Message) (message.Message, error) {
	return v.st.createMessage(msg)
}

func (s *state) createMessage(msg message.Message) (message.Message, error) {
	if msg.ID == 0 {
		msg.ID = s.nextMessageID
		s.nextMessageID++
	} else if msg.ID >= s.nextMessageID {
		s.nextMessageID = msg.ID + 1
	}
	s.messages[msg.ID] = msg
	return msg, nil
}

func (m *Memory) UpdateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateMessage(msg)
}

func (v *txView) UpdateMessage(_ context.Context, msg message.Message) (message.Message, error) {
	return v.st.updateMessage(msg)
}

func (s *state) updateMessage(msg message.Message) (message.Message, error) {
	if _, ok := s.messages[msg.ID]; !ok {
		return message.Message{}, storage.ErrNotFound
	}
	s.messages[msg.ID] = msg
	return msg, nil
}

func (m *Memory) GetMessage(ctx context.Context, id int64) (message.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getMessage(id)
}

func (v *txView) GetMessage(_ context.Context, id int64) (message.Message, error) {
	return v.st.getMessage(id)
}

func (s *state) getMessage(id int64) (message.Message, error) {
	msg, ok := s.messages[id]
	if !ok {
		return message.Message{}, storage.ErrNotFound
	}
	return msg, nil
}

func (m *Memory) ListMessages(ctx context.Context) ([]message.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listMessages(func(message.Message) bool { return true })
}

func (v *txView) ListMessages(_ context.Context) ([]message.Message, error) {
	return v.st.listMessages(func(message.Message) bool { return true })
}

func (m *Memory) ListMessagesByAuthor(ctx context.Context, accountID int64) ([]message.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listMessages(func(msg message.Message) bool { return msg.PostedBy == accountID })
}

func (v *txView) ListMessagesByAuthor(_ context.Context, accountID int64) ([]message.Message, error) {
	return v.st.listMessages(func(msg message.Message) bool { return msg.PostedBy == accountID })
}

func (s *state) listMessages(keep func(message.Message) bool) ([]message.Message, error) {
	result := make([]message.Message, 0)
	for _, msg := range s.messages {
		if keep(msg) {
			result = append(result, msg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) DeleteMessage(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteMessage(id)
}

func (v *txView) DeleteMessage(_ context.Context, id int64) (bool, error) {
	return v.st.deleteMessage(id)
}

func (s *state) deleteMessage(id int64) (bool, error) {
	if _, ok := s.messages[id]; !ok {
		return false, nil
	}
	delete(s.messages, id)
	return true, nil
}
