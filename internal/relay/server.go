// Package relay is the remote sharing service: it pairs installations
// through signed invitations and carries share and update messages between
// them. State is kept in memory.
package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goalnest/goalnest/internal/middleware"
	"github.com/goalnest/goalnest/internal/sharing"
)

const maxBodyBytes = 64 << 10

type Server struct {
	store    *Store
	tokens   *Tokens
	validate *validator.Validate
	limiter  *middleware.RateLimiter
}

// NewServer builds a relay. limiter may be nil to disable rate limiting.
func NewServer(store *Store, tokens *Tokens, limiter *middleware.RateLimiter) *Server {
	return &Server{
		store:    store,
		tokens:   tokens,
		validate: validator.New(),
		limiter:  limiter,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, &sharing.Envelope{})
	})
	mux.HandleFunc("POST /relationships", s.createRelationship)
	mux.HandleFunc("POST /relationships/accept", s.acceptRelationship)
	mux.HandleFunc("GET /relationships/{relId}", s.relationshipStatus)
	mux.HandleFunc("POST /messages", s.sendMessage)
	mux.HandleFunc("GET /messages", s.messages)
	mux.HandleFunc("POST /hints", s.hints)

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RequestLogging,
	}
	if s.limiter != nil {
		middlewares = append(middlewares, middleware.RateLimit(s.limiter))
	}
	return middleware.Chain(mux, middlewares...)
}

func (s *Server) createRelationship(w http.ResponseWriter, r *http.Request) {
	var req sharing.CreateRelationshipRequest
	if !s.decode(w, r, &req) {
		return
	}

	access, err := s.enroll(r, req.InstallID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	relID := s.store.CreateRelationship(req.Peer)
	token, err := s.tokens.Issue(relID, req.InstallID)
	if err != nil {
		if access != "" {
			s.store.Forget(req.InstallID)
		}
		slog.Error("failed to sign invitation", "error", err, "rel_id", relID)
		writeError(w, http.StatusInternalServerError, "failed to sign invitation")
		return
	}

	slog.Info("relationship created", "rel_id", relID, "inviter", req.InstallID)
	writeEnvelope(w, http.StatusCreated, &sharing.Envelope{
		RelID:       relID,
		InviteToken: token,
		AccessToken: access,
	})
}

func (s *Server) acceptRelationship(w http.ResponseWriter, r *http.Request) {
	var req sharing.AcceptRelationshipRequest
	if !s.decode(w, r, &req) {
		return
	}

	relID, inviterID, err := s.tokens.Parse(req.InviteToken)
	if err != nil {
		slog.Warn("invitation rejected", "error", err)
		writeError(w, http.StatusBadRequest, ErrInvalidToken.Error())
		return
	}

	access, err := s.enroll(r, req.InstallID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	inviter, err := s.store.Accept(relID, inviterID, req.Peer)
	if err != nil {
		if access != "" {
			s.store.Forget(req.InstallID)
		}
		writeStoreError(w, err)
		return
	}

	slog.Info("relationship accepted", "rel_id", relID, "invitee", req.InstallID)
	writeEnvelope(w, http.StatusOK, &sharing.Envelope{
		RelID:          relID,
		RelationshipID: relID,
		Accepted:       true,
		Peer:           &inviter,
		AccessToken:    access,
	})
}

func (s *Server) relationshipStatus(w http.ResponseWriter, r *http.Request) {
	relID := r.PathValue("relId")
	installID := r.URL.Query().Get("installId")
	if installID == "" {
		writeError(w, http.StatusBadRequest, "installId is required")
		return
	}
	err := s.authenticate(r, installID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	accepted, peer, err := s.store.Status(relID, installID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, &sharing.Envelope{
		RelID:          relID,
		RelationshipID: relID,
		Accepted:       accepted,
		Peer:           peer,
	})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sharing.SendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.authenticate(r, req.SenderID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	msg, err := s.store.Post(req)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeEnvelope(w, http.StatusCreated, &sharing.Envelope{
		RelID:        msg.RelID,
		ShareMessage: &msg,
	})
}

func (s *Server) messages(w http.ResponseWriter, r *http.Request) {
	installID := r.URL.Query().Get("installId")
	if installID == "" {
		writeError(w, http.StatusBadRequest, "installId is required")
		return
	}
	err := s.authenticate(r, installID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		after, err = strconv.ParseInt(v, 10, 64)
		if err != nil || after < 0 {
			writeError(w, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
	}

	writeEnvelope(w, http.StatusOK, &sharing.Envelope{
		Messages: s.store.Messages(installID, after),
	})
}

func (s *Server) hints(w http.ResponseWriter, r *http.Request) {
	var req sharing.HintsRequest
	if !s.decode(w, r, &req) {
		return
	}

	writeEnvelope(w, http.StatusOK, &sharing.Envelope{
		GoalHints: suggest(req.Title),
	})
}

// authenticate checks that the request carries the access token issued to
// installID.
func (s *Server) authenticate(r *http.Request, installID string) error {
	token, ok := bearer(r)
	if !ok {
		return ErrUnauthorized
	}
	subject, err := s.tokens.ParseAccess(token)
	if err != nil {
		return err
	}
	if subject != installID {
		return ErrUnauthorized
	}
	return nil
}

// enroll authenticates installID, or registers it when the relay has not
// seen it before and no token was sent. A new registration returns the
// access token the installation must present from then on.
func (s *Server) enroll(r *http.Request, installID string) (string, error) {
	if _, ok := bearer(r); ok || s.store.Registered(installID) {
		return "", s.authenticate(r, installID)
	}

	access, err := s.tokens.IssueAccess(installID)
	if err != nil {
		return "", err
	}
	if !s.store.Register(installID) {
		return "", ErrUnauthorized
	}
	slog.Info("install registered", "install_id", installID)
	return access, nil
}

func bearer(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// decode reads a JSON body into dst and validates it, answering the
// request itself when either step fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}

	err = s.validate.Struct(dst)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "validation failed: "+verrs.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRelationshipNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotParticipant):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotAccepted), errors.Is(err, ErrAlreadyAccepted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, ErrUnauthorized.Error())
	case errors.Is(err, ErrOwnInvitation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("relay store error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeEnvelope(w, code, &sharing.Envelope{Status: sharing.StatusError, Error: msg})
}

func writeEnvelope(w http.ResponseWriter, code int, env *sharing.Envelope) {
	if env.Status == "" {
		env.Status = sharing.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(env)
	if err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
