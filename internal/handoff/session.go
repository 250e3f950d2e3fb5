package handoff

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/betshop/settlement/internal/domain"
	"github.com/betshop/settlement/internal/ocr"
)

type State string

const (
	StatePending   State = "pending"
	StateUploaded  State = "uploaded"
	StateCompleted State = "completed"
	StateExpired   State = "expired"
)

// Session is the short-lived channel between a desktop that needs a receipt
// and the phone that photographs it. The desktop shows the session id as a
// QR code, the phone uploads through it, the desktop polls until it can
// consume the parsed result.
type Session struct {
	ID        string                `json:"session_id"`
	State     State                 `json:"state"`
	CreatedAt time.Time             `json:"created_at"`
	ExpiresAt time.Time             `json:"expires_at"`
	Receipt   *domain.ParsedReceipt `json:"receipt,omitempty"`
}

// Store holds sessions in memory. Sessions are small, short-lived and
// read-heavy, so expiry is derived lazily from the clock on every read
// instead of running a sweeper; absence of polling is itself the
// cancellation signal.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	parser   ocr.ReceiptParser
	now      func() time.Time
}

func NewStore(parser ocr.ReceiptParser, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		parser:   parser,
		now:      time.Now,
	}
}

// Create opens a fresh pending session with an unguessable id.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		State:     StatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[sess.ID] = sess
	return sess
}

// SubmitUpload runs the image through the OCR collaborator and moves the
// session to uploaded. Only valid from pending. An OCR failure leaves the
// session pending so the phone can retry; the OCR call runs outside the
// lock because it can take a while.
func (s *Store) SubmitUpload(ctx context.Context, id string, image []byte) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	s.expireLocked(sess)
	if sess.State == StateExpired {
		s.mu.Unlock()
		return domain.ErrSessionExpired
	}
	if sess.State != StatePending {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s, upload requires pending", domain.ErrSessionState, sess.State)
	}
	s.mu.Unlock()

	receipt, err := s.parser.Parse(ctx, image)
	if err != nil {
		log.Printf("[handoff] ocr failed for session %s: %v", id, err)
		return fmt.Errorf("parse receipt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check: the session may have moved on while OCR was running.
	s.expireLocked(sess)
	switch sess.State {
	case StatePending:
	case StateExpired:
		return domain.ErrSessionExpired
	default:
		return fmt.Errorf("%w: %s, upload requires pending", domain.ErrSessionState, sess.State)
	}
	sess.State = StateUploaded
	sess.Receipt = receipt
	return nil
}

// Poll returns the session's current state without consuming it.
func (s *Store) Poll(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.expireLocked(sess)

	cp := *sess
	return &cp, nil
}

// Complete consumes an uploaded session so no second poller can take the
// same receipt. Terminal state.
func (s *Store) Complete(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.expireLocked(sess)

	switch sess.State {
	case StateExpired:
		return nil, domain.ErrSessionExpired
	case StateUploaded:
		sess.State = StateCompleted
		cp := *sess
		return &cp, nil
	case StateCompleted:
		return nil, fmt.Errorf("%w: already completed", domain.ErrSessionState)
	default:
		return nil, domain.ErrSessionNotUploaded
	}
}

// expireLocked derives the expired state from the clock. Uploaded sessions
// expire too if nobody consumes them in time.
func (s *Store) expireLocked(sess *Session) {
	if sess.State == StateCompleted || sess.State == StateExpired {
		return
	}
	if s.now().After(sess.ExpiresAt) {
		sess.State = StateExpired
		sess.Receipt = nil
	}
}

// pruneLocked drops sessions long past expiry so the map stays bounded.
// Piggybacks on Create; there is no background sweep.
func (s *Store) pruneLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
