package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// streamPath is the backend's streaming chat endpoint.
const streamPath = "/api/v1/conversations/stream"

// ConnectionState describes where the stream connection is in its
// lifecycle. Exactly one state holds at a time and only the lifecycle
// controller assigns it.
type ConnectionState string

const (
	// StateDisconnected means no stream is open and none is being opened.
	StateDisconnected ConnectionState = "disconnected"
	// StateConnecting means a request has been issued or a retry is pending.
	StateConnecting ConnectionState = "connecting"
	// StateConnected means the response stream is open and being read.
	StateConnected ConnectionState = "connected"
	// StateError means the send cycle failed terminally.
	StateError ConnectionState = "error"
)

// startCycleLocked launches the reader goroutine for a send cycle. The
// caller holds s.mu and has verified the session is not closed.
func (s *Session) startCycleLocked(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelRead = cancel
	s.wg.Add(1)
	go s.runCycle(ctx, gen)
}

// runCycle performs one connection attempt: build the request, open the
// stream, then hand off to the read loop. Transport failures feed the
// reconnection procedure instead of erroring out immediately.
func (s *Session) runCycle(ctx context.Context, gen uint64) {
	defer s.wg.Done()

	body, err := s.buildRequest(gen)
	if err != nil {
		if !errors.Is(err, errStaleCycle) {
			s.logger.Error("[chat] failed to build stream request", "error", err)
		}
		return
	}

	stream, err := s.connect(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.handleTransportFailure(gen, err)
		return
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		_ = stream.Close()
		return
	}
	s.state = StateConnected
	s.attempts = 0
	// Drop the transient reconnect notice now that the stream is open.
	s.errMsg = ""
	s.mu.Unlock()
	s.logger.Debug("[chat] stream connected", "generation", gen)

	s.readStream(ctx, gen, stream)
}

// buildRequest snapshots the session state into a request body. The
// context-switch flag is consumed here: it resets as soon as a request
// carries it, regardless of how the attempt turns out.
func (s *Session) buildRequest(gen uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		return nil, errStaleCycle
	}

	req := streamRequest{
		ContextID:       s.contextID,
		ConversationID:  s.conversationID,
		Messages:        s.transcript.snapshot(),
		IsContextSwitch: s.contextSwitch,
	}
	s.contextSwitch = false

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode stream request: %w", err)
	}
	return data, nil
}

func (s *Session) connect(ctx context.Context, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w %d", errUnexpectedStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

// readStream decodes frames off the response body and dispatches them in
// arrival order. Each frame is fully routed before the next read, so event
// effects are observed in stream order.
func (s *Session) readStream(ctx context.Context, gen uint64, body io.ReadCloser) {
	defer func() {
		if err := body.Close(); err != nil {
			s.logger.Debug("[chat] failed to close stream body", "error", err)
		}
	}()

	dec := &frameDecoder{}
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range dec.feed(buf[:n]) {
				if stop := s.routeFrame(gen, frame); stop {
					return
				}
			}
			if dec.finished() {
				s.finishCycle(gen)
				return
			}
		}
		if errors.Is(err, io.EOF) {
			s.finishCycle(gen)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				// Torn down or superseded; a newer cycle owns the state.
				return
			}
			s.handleTransportFailure(gen, err)
			return
		}
	}
}

// finishCycle records a graceful stream end.
func (s *Session) finishCycle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		return
	}
	s.state = StateDisconnected
	s.streaming = false
	s.transcript.detachInFlight()
}

// handleTransportFailure drives the bounded reconnection procedure: retry
// with backoff while attempts remain, otherwise fail the cycle terminally.
func (s *Session) handleTransportFailure(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}

	if s.attempts < s.cfg.MaxAttempts {
		attempt := s.attempts
		s.attempts++
		delay := retryDelay(s.cfg.RetryDelays, attempt)
		s.state = StateConnecting
		s.errMsg = fmt.Sprintf("connection lost, reconnecting (attempt %d of %d)", attempt+1, s.cfg.MaxAttempts)
		s.retryTimer = time.AfterFunc(delay, func() { s.retryCycle(gen) })
		s.mu.Unlock()
		s.logger.Warn("[chat] transport failure, scheduling retry",
			"error", cause,
			"attempt", attempt+1,
			"max_attempts", s.cfg.MaxAttempts,
			"delay", delay)
		return
	}

	s.state = StateError
	s.streaming = false
	s.transcript.detachInFlight()
	err := fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, s.cfg.MaxAttempts, cause)
	s.errMsg = err.Error()
	s.mu.Unlock()

	s.logger.Error("[chat] transport failure, retries exhausted", "error", cause, "attempts", s.cfg.MaxAttempts)
	s.deps.Notifier.OnError(err)
}

// retryCycle fires from the retry timer and reissues the request for the
// same send cycle.
func (s *Session) retryCycle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		return
	}
	s.retryTimer = nil
	s.startCycleLocked(gen)
}

// retryDelay returns the backoff before the given zero-based attempt,
// clamped to the last configured delay.
func retryDelay(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempt >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempt]
}
