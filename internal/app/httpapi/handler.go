package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/plaza-social/plaza/internal/app"
	"github.com/plaza-social/plaza/internal/app/metrics"
	"github.com/plaza-social/plaza/internal/app/services/accounts"
	"github.com/plaza-social/plaza/internal/app/services/messages"
	"github.com/plaza-social/plaza/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	log   *logger.Logger
	audit *auditLog
}

// Option adjusts handler construction.
type Option func(*handler)

// WithAuditSink persists audit entries to path as JSON lines, in addition
// to the in-memory ring. An unopenable path logs a warning and is skipped.
func WithAuditSink(path string) Option {
	return func(h *handler) {
		sink, err := newFileAuditSink(path)
		if err != nil {
			h.log.WithError(err).Warn("audit sink disabled")
			return
		}
		if sink != nil {
			h.audit.sink = sink
		}
	}
}

// NewHandler returns the REST API router. Every request passes through the
// audit middleware; CORS and metrics instrumentation are layered on by the
// caller.
func NewHandler(application *app.Application, log *logger.Logger, opts ...Option) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log, audit: newAuditLog(200, nil)}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.HandleFunc("/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages", h.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{message_id}", h.getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{message_id}", h.updateMessage).Methods(http.MethodPatch)
	r.HandleFunc("/messages/{message_id}", h.deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/accounts/{account_id}/messages", h.listMessagesByAccount).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return auditMiddleware(h.audit, r)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccountID *int64  `json:"accountId"`
		Username  *string `json:"username"`
		Password  *string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.Register(r.Context(), accounts.RegisterTemplate{
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		metrics.RecordRegistration("rejected")
		switch {
		case errors.Is(err, accounts.ErrUsernameReserved):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, accounts.ErrUsernameMissing),
			errors.Is(err, accounts.ErrUsernameBlank),
			errors.Is(err, accounts.ErrPasswordMissing),
			errors.Is(err, accounts.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err)
		default:
			h.serverError(w, err)
		}
		return
	}
	metrics.RecordRegistration("ok")
	writeJSON(w, http.StatusOK, acct)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccountID *int64  `json:"accountId"`
		Username  *string `json:"username"`
		Password  *string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.Login(r.Context(), accounts.Credentials{
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrNoAccountFound):
			writeError(w, http.StatusUnauthorized, err)
		case errors.Is(err, accounts.ErrLoginUsernameMissing),
			errors.Is(err, accounts.ErrLoginPasswordMissing):
			writeError(w, http.StatusBadRequest, err)
		default:
			h.serverError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MessageID       *int64  `json:"messageId"`
		PostedBy        *int64  `json:"postedBy"`
		MessageText     *string `json:"messageText"`
		TimePostedEpoch *int64  `json:"timePostedEpoch"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	msg, err := h.app.Messages.Send(r.Context(), messages.SendTemplate{
		PostedBy:        payload.PostedBy,
		MessageText:     payload.MessageText,
		TimePostedEpoch: payload.TimePostedEpoch,
	})
	if err != nil {
		metrics.RecordMessagePosted("rejected")
		h.writeMessageError(w, err)
		return
	}
	metrics.RecordMessagePosted("ok")
	writeJSON(w, http.StatusOK, msg)
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.app.Messages.List(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *handler) getMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "message_id")
	if !ok {
		return
	}

	msg, found, err := h.app.Messages.Get(r.Context(), id)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *handler) updateMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "message_id")
	if !ok {
		return
	}

	var payload struct {
		MessageID       *int64  `json:"messageId"`
		PostedBy        *int64  `json:"postedBy"`
		MessageText     *string `json:"messageText"`
		TimePostedEpoch *int64  `json:"timePostedEpoch"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := h.app.Messages.UpdateText(r.Context(), id, payload.MessageText); err != nil {
		h.writeMessageError(w, err)
		return
	}
	// The contract reports the number of rows changed, which is always one.
	writeJSON(w, http.StatusOK, 1)
}

func (h *handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "message_id")
	if !ok {
		return
	}

	removed, err := h.app.Messages.Delete(r.Context(), id)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if !removed {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, 1)
}

func (h *handler) listMessagesByAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account_id")
	if !ok {
		return
	}

	msgs, err := h.app.Messages.ListByAuthor(r.Context(), id)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Health())
}

// writeMessageError maps the closed set of message rule violations. An
// error outside the set is a defect and surfaces as a 500.
func (h *handler) writeMessageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messages.ErrTextMissing),
		errors.Is(err, messages.ErrTextBlank),
		errors.Is(err, messages.ErrTextTooLong),
		errors.Is(err, messages.ErrUnknownAuthor),
		errors.Is(err, messages.ErrNoSuchMessage):
		writeError(w, http.StatusBadRequest, err)
	default:
		h.serverError(w, err)
	}
}

func (h *handler) serverError(w http.ResponseWriter, err error) {
	h.log.WithError(err).Error("unhandled service error")
	writeError(w, http.StatusInternalServerError, err)
}

// pathID parses the named numeric path variable, answering 400 itself when
// the value is not an integer.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New(name+" must be numeric"))
		return 0, false
	}
	return id, true
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
