package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/session"
	"github.com/jonathan/resume-tailor/internal/types"
)

// SessionResponse is the summary returned when a session is created
type SessionResponse struct {
	ID            uuid.UUID    `json:"id"`
	Status        types.Status `json:"status"`
	Attempts      int          `json:"attempts"`
	FailureReason string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func newSessionResponse(sess *types.TailoringSession) SessionResponse {
	return SessionResponse{
		ID:            sess.ID,
		Status:        sess.Status,
		Attempts:      sess.Attempts,
		FailureReason: sess.FailureReason,
		CreatedAt:     sess.CreatedAt,
	}
}

// TraceResponse is the debug trace of a session
type TraceResponse struct {
	SessionID uuid.UUID          `json:"session_id"`
	Trace     []types.TraceEntry `json:"trace"`
}

// StatusEvent is streamed on every observed session change
type StatusEvent struct {
	SessionID     uuid.UUID    `json:"session_id"`
	Status        types.Status `json:"status"`
	Attempts      int          `json:"attempts"`
	Version       int64        `json:"version"`
	FailureReason string       `json:"failure_reason,omitempty"`
	FailureStage  string       `json:"failure_stage,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ScoreRequest asks for an ad-hoc ATS score of bullets against job text
type ScoreRequest struct {
	JobText string   `json:"job_text" validate:"required,max=200000"`
	Summary string   `json:"summary" validate:"max=5000"`
	Bullets []string `json:"bullets" validate:"required,min=1,max=200,dive,required,max=2000"`
}

// ScoreResponse carries the extracted requirements and the score
type ScoreResponse struct {
	Requirements *types.RequirementSet `json:"requirements"`
	ATS          *types.ATSMetadata    `json:"ats"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeBody reads a JSON request body into dst
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid request body: " + err.Error()}
	}
	return nil
}

// handleCreateSession validates and dispatches a new session. A session that
// could not be dispatched is returned with 503 and status FAILED.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.failWith(w, r, err)
		return
	}

	sess, err := s.sessions.Create(r.Context(), req)
	if err != nil {
		var dispatchErr *session.DispatchError
		if errors.As(err, &dispatchErr) && sess != nil {
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]any{
				"error":   err.Error(),
				"session": newSessionResponse(sess),
			})
			return
		}
		s.failWith(w, r, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+sess.ID.String())
	s.jsonResponse(w, http.StatusAccepted, newSessionResponse(sess))
}

// handleGetSession returns the full session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

// handleDeleteSession removes a session in any state
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.failWith(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionTrace returns the debug trace
func (s *Server) handleSessionTrace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	trace, err := s.sessions.Trace(r.Context(), id)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	if trace == nil {
		trace = []types.TraceEntry{}
	}
	s.jsonResponse(w, http.StatusOK, TraceResponse{SessionID: id, Trace: trace})
}

// handleSessionEvents streams status changes until the session reaches a
// terminal state, is deleted, or the client goes away.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	ctx := r.Context()

	// resolve 404 before switching to an event stream
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		s.failWith(w, r, err)
		return
	}

	stream, err := openEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(s.cfg.EventPollInterval)
	defer ticker.Stop()

	lastVersion := lastEventID(r)
	for {
		if sess.Version != lastVersion {
			lastVersion = sess.Version
			if err := stream.status(StatusEvent{
				SessionID:     sess.ID,
				Status:        sess.Status,
				Attempts:      sess.Attempts,
				Version:       sess.Version,
				FailureReason: sess.FailureReason,
				FailureStage:  sess.FailureStage,
				UpdatedAt:     sess.UpdatedAt,
			}); err != nil {
				s.logger.Debug("event stream closed", zap.String("session_id", id.String()), zap.Error(err))
				return
			}
		}
		if sess.Status.IsTerminal() {
			stream.complete(id.String(), sess.Status.String())
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sess, err = s.sessions.Get(ctx, id)
		switch {
		case errors.Is(err, db.ErrNotFound):
			stream.fail("session deleted")
			return
		case err != nil:
			if ctx.Err() == nil {
				s.logger.Warn("event stream lookup failed", zap.String("session_id", id.String()), zap.Error(err))
				stream.fail("failed to load session")
			}
			return
		}
	}
}

// handleScore extracts requirements from job text and scores the given
// bullets against them without creating a session.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.failWith(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.failWith(w, r, toValidationError(err))
		return
	}

	reqs, err := s.extractor.Extract(req.JobText)
	if err != nil {
		s.failWith(w, r, err)
		return
	}
	content := &types.TailoredContent{
		Summary:     req.Summary,
		Bullets:     req.Bullets,
		Sections:    []types.Section{},
		Suggestions: []string{},
	}
	s.jsonResponse(w, http.StatusOK, ScoreResponse{
		Requirements: reqs,
		ATS:          s.scorer.Score(reqs, content),
	})
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	fe := verrs[0]
	msg := fe.Tag()
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return &ErrValidation{Field: fe.Namespace(), Message: msg}
}
