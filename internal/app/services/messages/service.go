// Package messages holds the posting rules: text validation, author
// existence on send, and the lookup rule for updates. Like the accounts
// service, failures are a closed set of sentinel errors.
package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plaza-social/plaza/internal/app/domain/message"
	"github.com/plaza-social/plaza/internal/app/storage"
	"github.com/plaza-social/plaza/pkg/logger"
)

// Text rules apply identically to Send and UpdateText and are checked in
// declaration order, before any storage lookup.
var (
	ErrTextMissing = errors.New("message text is required")
	ErrTextBlank   = errors.New("message text must not be blank")
	ErrTextTooLong = errors.New("message text must be under 255 characters")
)

var (
	// ErrUnknownAuthor rejects a send whose postedBy does not name an
	// existing account. An absent postedBy fails the same way.
	ErrUnknownAuthor = errors.New("message author does not exist")
	// ErrNoSuchMessage rejects an update of a message id with no record.
	ErrNoSuchMessage = errors.New("no message with the given id")
)

// maxTextLength bounds message text, exclusive, in UTF-16 code units of
// the raw untrimmed string.
const maxTextLength = 255

// SendTemplate carries the client-supplied fields of a new message. Nil
// pointers model fields absent from the request body.
type SendTemplate struct {
	PostedBy        *int64
	MessageText     *string
	TimePostedEpoch *int64
}

// Service applies message rules on top of a storage gateway.
type Service struct {
	store storage.Gateway
	log   *logger.Logger
}

// New constructs a message service.
func New(store storage.Gateway, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("messages")
	}
	return &Service{store: store, log: log}
}

// Send validates tpl and persists a new message. The author check and the
// insert share one unit of work so a failure leaves nothing behind.
func (s *Service) Send(ctx context.Context, tpl SendTemplate) (message.Message, error) {
	if err := validateText(tpl.MessageText); err != nil {
		return message.Message{}, err
	}
	if tpl.PostedBy == nil {
		return message.Message{}, ErrUnknownAuthor
	}

	var created message.Message
	err := s.store.InTransaction(ctx, func(g storage.Gateway) error {
		exists, err := g.AccountExists(ctx, *tpl.PostedBy)
		if err != nil {
			return fmt.Errorf("check author: %w", err)
		}
		if !exists {
			return ErrUnknownAuthor
		}

		msg := message.Message{PostedBy: *tpl.PostedBy, MessageText: *tpl.MessageText}
		if tpl.TimePostedEpoch != nil {
			msg.TimePostedEpoch = *tpl.TimePostedEpoch
		}
		created, err = g.CreateMessage(ctx, msg)
		return err
	})
	if err != nil {
		return message.Message{}, err
	}

	s.log.WithField("message_id", created.ID).
		WithField("account_id", created.PostedBy).
		Info("message posted")
	return created, nil
}

// UpdateText replaces the text of an existing message. Text rules run
// first, so a bad newText on a missing id reports the text error, not
// ErrNoSuchMessage. Only the text changes; author and timestamp stay.
func (s *Service) UpdateText(ctx context.Context, id int64, newText *string) (message.Message, error) {
	if err := validateText(newText); err != nil {
		return message.Message{}, err
	}

	var updated message.Message
	err := s.store.InTransaction(ctx, func(g storage.Gateway) error {
		msg, err := g.GetMessage(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoSuchMessage
		}
		if err != nil {
			return err
		}

		msg.MessageText = *newText
		updated, err = g.UpdateMessage(ctx, msg)
		return err
	})
	if err != nil {
		return message.Message{}, err
	}

	s.log.WithField("message_id", id).Info("message text updated")
	return updated, nil
}

// Delete removes the message if present and reports whether it did.
// Deleting an absent id is not an error.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	removed, err := s.store.DeleteMessage(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.WithField("message_id", id).Info("message deleted")
	}
	return removed, nil
}

// Get fetches a message by id; ok reports whether it exists.
func (s *Service) Get(ctx context.Context, id int64) (message.Message, bool, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return message.Message{}, false, nil
	}
	if err != nil {
		return message.Message{}, false, err
	}
	return msg, true, nil
}

// List returns every message in storage order.
func (s *Service) List(ctx context.Context) ([]message.Message, error) {
	return s.store.ListMessages(ctx)
}

// ListByAuthor returns the messages posted by accountID, possibly empty.
// An unknown accountID is indistinguishable from a silent account.
func (s *Service) ListByAuthor(ctx context.Context, accountID int64) ([]message.Message, error) {
	return s.store.ListMessagesByAuthor(ctx, accountID)
}

func validateText(text *string) error {
	if text == nil {
		return ErrTextMissing
	}
	if strings.TrimSpace(*text) == "" {
		return ErrTextBlank
	}
	if utf16Len(*text) >= maxTextLength {
		return ErrTextTooLong
	}
	return nil
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
