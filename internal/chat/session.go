package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/myflowhq/flowsync/internal/domain"
)

var (
	// ErrSendInFlight is returned when SendMessage is called while a prior
	// send is still connecting.
	ErrSendInFlight = errors.New("a send is already in progress")
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrRetriesExhausted is surfaced through State.Error and OnError once
	// reconnection attempts run out.
	ErrRetriesExhausted = errors.New("could not reach the chat service")

	errStaleCycle       = errors.New("superseded send cycle")
	errServerError      = errors.New("chat service error")
	errUnexpectedStatus = errors.New("unexpected response status")
)

// ListCache is the shared flow-list cache the engine reconciles against.
// Lists are keyed by context id. Implementations must be safe for
// concurrent use.
type ListCache interface {
	// GetList returns the cached list for a context, or false when absent.
	GetList(contextID string) ([]domain.Flow, bool)
	// SetList replaces the cached list for a context.
	SetList(contextID string, flows []domain.Flow)
	// Invalidate marks the context's list out of date so it gets refreshed
	// or evicted.
	Invalidate(contextID string)
}

// FlowDeleter removes flows server-side when the user dismisses them.
type FlowDeleter interface {
	DeleteFlow(ctx context.Context, flowID string) error
}

// Config tunes a session. BaseURL and ContextID are required; zero values
// elsewhere fall back to the production defaults.
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8000".
	BaseURL string
	// ContextID selects the context the conversation starts in.
	ContextID string
	// MaxAttempts bounds reconnection attempts per send cycle.
	MaxAttempts int
	// RetryDelays is the backoff schedule between attempts; attempts past
	// the last entry reuse it.
	RetryDelays []time.Duration
}

const defaultMaxAttempts = 3

func defaultRetryDelays() []time.Duration {
	return []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
}

// Deps are the collaborators a session drives. Cache and Deleter are
// required; the rest fall back to a no-op notifier, a client without a
// timeout (the stream stays open for the whole response) and slog.Default.
type Deps struct {
	Cache      ListCache
	Deleter    FlowDeleter
	Notifier   Notifier
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// State is a point-in-time copy of the observable session state. Error is
// empty when no error is pending; every accepted SendMessage clears it.
type State struct {
	Messages            []domain.Message
	Streaming           bool
	Error               string
	Connection          ConnectionState
	PendingExtractions  []domain.Flow
	NotificationVisible bool
	ContextID           string
	ConversationID      string
}

// Session orchestrates one conversation: it owns the transcript, the
// pending extraction set and the connection lifecycle. All methods are safe
// for concurrent use.
type Session struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu             sync.Mutex
	state          ConnectionState
	transcript     transcript
	extractions    extractionStore
	contextID      string
	conversationID string
	contextSwitch  bool
	streaming      bool
	errMsg         string
	attempts       int
	gen            uint64
	closed         bool
	retryTimer     *time.Timer
	cancelRead     context.CancelFunc

	wg sync.WaitGroup
}

// New creates a session for the given context. The caller owns the
// collaborators' lifecycles and must Close the session when done with it.
func New(cfg Config, deps Deps) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("chat: BaseURL is required")
	}
	if cfg.ContextID == "" {
		return nil, fmt.Errorf("chat: ContextID is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("chat: Cache collaborator is required")
	}
	if deps.Deleter == nil {
		return nil, fmt.Errorf("chat: Deleter collaborator is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = defaultRetryDelays()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Session{
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger,
		state:     StateDisconnected,
		contextID: cfg.ContextID,
	}, nil
}

// SendMessage appends a user message to the transcript and starts a new
// send cycle. It returns without waiting for the response; progress is
// observable through Snapshot and the Notifier. A send is rejected only
// while a previous one is still connecting.
func (s *Session) SendMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == StateConnecting {
		s.errMsg = ErrSendInFlight.Error()
		s.mu.Unlock()
		return ErrSendInFlight
	}

	// Supersede any previous cycle. Its reader observes the cancelled
	// context at the next read and its late callbacks fail the generation
	// check, so it can no longer touch session state.
	if s.cancelRead != nil {
		s.cancelRead()
		s.cancelRead = nil
	}
	s.stopRetryTimerLocked()
	s.gen++
	s.errMsg = ""
	s.attempts = 0
	s.streaming = true
	s.state = StateConnecting
	s.transcript.append(domain.NewUserMessage(content))
	s.startCycleLocked(s.gen)
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the observable state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, _ := s.extractions.take()
	return State{
		Messages:            s.transcript.snapshot(),
		Streaming:           s.streaming,
		Error:               s.errMsg,
		Connection:          s.state,
		PendingExtractions:  pending,
		NotificationVisible: s.extractions.visible,
		ContextID:           s.contextID,
		ConversationID:      s.conversationID,
	}
}

// AcceptExtractions commits the pending flows: the shared cache is merged
// right away so the accepted flows are visible immediately, then a refresh
// is requested asynchronously to confirm against the server. The pending
// set is cleared once both have been issued. Calling with nothing pending
// only clears the notification flag.
func (s *Session) AcceptExtractions() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	pending, seq := s.extractions.take()
	contextID := s.contextID
	s.mu.Unlock()

	if len(pending) > 0 {
		current, _ := s.deps.Cache.GetList(contextID)
		s.deps.Cache.SetList(contextID, mergeFlows(current, pending))
		go s.deps.Cache.Invalidate(contextID)
		s.logger.Info("[chat] extractions accepted", "count", len(pending), "context_id", contextID)
	}

	s.mu.Lock()
	s.extractions.clearIf(seq)
	s.mu.Unlock()
	return nil
}

// DismissExtractions discards the pending flows and deletes each one
// server-side. Deletions are best-effort: failures are recorded in the
// session error and returned, but local state always clears.
func (s *Session) DismissExtractions(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	pending, seq := s.extractions.take()
	s.mu.Unlock()

	var (
		failMu sync.Mutex
		failed int
		first  error
	)
	var wg sync.WaitGroup
	for _, flow := range pending {
		wg.Add(1)
		go func(f domain.Flow) {
			defer wg.Done()
			if err := s.deps.Deleter.DeleteFlow(ctx, f.ID); err != nil {
				s.logger.Warn("[chat] dismiss delete failed", "flow_id", f.ID, "error", err)
				failMu.Lock()
				failed++
				if first == nil {
					first = err
				}
				failMu.Unlock()
			}
		}(flow)
	}
	wg.Wait()

	s.mu.Lock()
	s.extractions.clearIf(seq)
	if failed > 0 {
		s.errMsg = fmt.Sprintf("failed to remove %d of %d dismissed flows", failed, len(pending))
	}
	s.mu.Unlock()

	if failed > 0 {
		return fmt.Errorf("dismiss: %d of %d deletions failed: %w", failed, len(pending), first)
	}
	return nil
}

// SwitchContext points the session at a different context. Pending
// extractions belong to the old context and are dropped, the conversation
// id is reset, and the next send carries the context-switch flag so the
// server knows the topic changed.
func (s *Session) SwitchContext(contextID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || contextID == "" || contextID == s.contextID {
		return
	}
	s.contextID = contextID
	s.conversationID = ""
	s.contextSwitch = true
	s.extractions.clear()
	s.logger.Info("[chat] context switched", "context_id", contextID)
}

// Close tears the session down: the retry timer is cancelled and the read
// loop observes the cancelled context at its next suspension point. Late
// callbacks from a still-draining cycle are dropped rather than applied to
// the closed session. Close blocks until the reader goroutine exits.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopRetryTimerLocked()
	if s.cancelRead != nil {
		s.cancelRead()
		s.cancelRead = nil
	}
	s.transcript.detachInFlight()
	s.streaming = false
	s.state = StateDisconnected
	contextID := s.contextID
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("[chat] session closed", "context_id", contextID)
}

func (s *Session) stopRetryTimerLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}
