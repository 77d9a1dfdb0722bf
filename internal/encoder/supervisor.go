package encoder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"castforge/internal/domain"
	"castforge/internal/ids"
	"github.com/rs/zerolog/log"
)

// LaunchError wraps the underlying cause of a failed encoder launch.
type LaunchError struct {
	Cause error
}

func (e *LaunchError) Error() string { return "encoder launch failed: " + e.Cause.Error() }
func (e *LaunchError) Unwrap() error { return e.Cause }

// StatusActive is the only status the process table reports: a handle
// either exists and is active, or it does not exist at all.
const StatusActive = "active"

// Info is a read-only view of one live handle.
type Info struct {
	StreamID  domain.StreamID      `json:"stream_id"`
	SessionID domain.SessionID     `json:"session_id"`
	Status    string               `json:"status"`
	Duration  float64              `json:"duration"`
	Video     domain.VideoParams   `json:"video"`
	Audio     domain.AudioSettings `json:"audio"`
}

// ExitFunc is called exactly once when a process exits on its own.
// Exits following an explicit stop are duplicates and never reach it.
type ExitFunc func(streamID domain.StreamID, sessionID domain.SessionID, cause error)

type handle struct {
	streamID  domain.StreamID
	sessionID domain.SessionID
	endpoint  string
	video     domain.VideoParams
	audio     domain.AudioSettings
	proc      Process
	startedAt time.Time
}

// Supervisor owns the process table: every live encoder handle keyed
// by stream id, with at most one handle per session. Launch and kill
// run off the lock so a slow spawn never blocks unrelated streams.
type Supervisor struct {
	runner Runner
	ids    ids.Generator
	now    func() time.Time

	mu        sync.Mutex
	handles   map[domain.StreamID]*handle
	bySession map[domain.SessionID]domain.StreamID
	onExit    ExitFunc
}

func NewSupervisor(runner Runner, gen ids.Generator) *Supervisor {
	return &Supervisor{
		runner:    runner,
		ids:       gen,
		now:       time.Now,
		handles:   make(map[domain.StreamID]*handle),
		bySession: make(map[domain.SessionID]domain.StreamID),
	}
}

// OnExit registers the unexpected-exit callback. Call before Start.
func (s *Supervisor) OnExit(fn ExitFunc) {
	s.mu.Lock()
	s.onExit = fn
	s.mu.Unlock()
}

// Start launches an encoder for the session and returns the fresh
// stream id with the resolved audio settings. A session that already
// owns a live (or launching) handle is rejected.
func (s *Supervisor) Start(ctx context.Context, sessionID domain.SessionID, inputSource, endpoint string, video domain.VideoParams, audio domain.AudioParams) (domain.StreamID, domain.AudioSettings, error) {
	if endpoint == "" {
		return "", domain.AudioSettings{}, fmt.Errorf("%w: destination endpoint required", domain.ErrValidation)
	}

	resolvedVideo := video.WithDefaults()
	resolvedAudio := domain.ResolveAudio(audio)
	streamID := domain.StreamID(s.ids.NewID())

	// Reserve the session slot before the (slow) launch so a
	// concurrent start for the same session fails fast.
	s.mu.Lock()
	if cur, ok := s.bySession[sessionID]; ok {
		s.mu.Unlock()
		return "", domain.AudioSettings{}, fmt.Errorf("%w: stream %s", domain.ErrAlreadyActive, cur)
	}
	s.bySession[sessionID] = streamID
	s.mu.Unlock()

	proc, err := s.runner.Start(ctx, LaunchSpec{
		InputSource: inputSource,
		Endpoint:    endpoint,
		Video:       resolvedVideo,
		Audio:       resolvedAudio,
	})
	if err != nil {
		s.mu.Lock()
		if s.bySession[sessionID] == streamID {
			delete(s.bySession, sessionID)
		}
		s.mu.Unlock()
		log.Error().Err(err).Str("module", "encoder.supervisor").Str("session", string(sessionID)).Msg("launch failed")
		return "", domain.AudioSettings{}, &LaunchError{Cause: err}
	}

	h := &handle{
		streamID:  streamID,
		sessionID: sessionID,
		endpoint:  endpoint,
		video:     resolvedVideo,
		audio:     resolvedAudio,
		proc:      proc,
		startedAt: s.now(),
	}
	s.mu.Lock()
	s.handles[streamID] = h
	s.mu.Unlock()
	go s.watch(h)

	log.Info().Str("module", "encoder.supervisor").Str("session", string(sessionID)).
		Str("stream", string(streamID)).Str("resolution", resolvedVideo.Resolution).Msg("stream started")
	return streamID, resolvedAudio, nil
}

// Stop terminates the stream unconditionally. A second stop for the
// same id finds no handle and reports NotFound.
func (s *Supervisor) Stop(streamID domain.StreamID) (domain.SessionID, error) {
	h, ok := s.release(streamID)
	if !ok {
		return "", fmt.Errorf("%w: stream %s", domain.ErrNotFound, streamID)
	}
	// The watcher sees the exit after release already emptied the
	// table, so the notification collapses into a no-op.
	_ = h.proc.Kill()
	log.Info().Str("module", "encoder.supervisor").Str("stream", string(streamID)).Msg("stream stopped")
	return h.sessionID, nil
}

// StopSession stops whatever handle the session currently owns.
// Reports NotFound when no live handle exists.
func (s *Supervisor) StopSession(sessionID domain.SessionID) (domain.StreamID, error) {
	s.mu.Lock()
	streamID, ok := s.bySession[sessionID]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: session %s has no active stream", domain.ErrNotFound, sessionID)
	}
	if _, err := s.Stop(streamID); err != nil {
		return "", err
	}
	return streamID, nil
}

// Active returns the stream id currently bound to the session.
func (s *Supervisor) Active(sessionID domain.SessionID) (domain.StreamID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySession[sessionID]
	return id, ok
}

// Info reports the current view of a live handle.
func (s *Supervisor) Info(streamID domain.StreamID) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[streamID]
	if !ok {
		return Info{}, fmt.Errorf("%w: stream %s", domain.ErrNotFound, streamID)
	}
	return Info{
		StreamID:  h.streamID,
		SessionID: h.sessionID,
		Status:    StatusActive,
		Duration:  s.now().Sub(h.startedAt).Seconds(),
		Video:     h.video,
		Audio:     h.audio,
	}, nil
}

// UpdateAudio merges the provided fields into the stream's audio
// settings and pushes the result into the running process. Untouched
// fields are preserved exactly.
func (s *Supervisor) UpdateAudio(streamID domain.StreamID, patch domain.AudioPatch) (domain.AudioSettings, error) {
	s.mu.Lock()
	h, ok := s.handles[streamID]
	if !ok {
		s.mu.Unlock()
		return domain.AudioSettings{}, fmt.Errorf("%w: stream %s", domain.ErrNotFound, streamID)
	}
	h.audio = patch.Apply(h.audio)
	updated := h.audio
	proc := h.proc
	s.mu.Unlock()

	if err := proc.UpdateFilter(updated); err != nil {
		log.Warn().Err(err).Str("module", "encoder.supervisor").Str("stream", string(streamID)).Msg("filter update not applied")
	}
	return updated, nil
}

func (s *Supervisor) watch(h *handle) {
	<-h.proc.Done()
	if _, ok := s.release(h.streamID); !ok {
		// Already cleaned up by an explicit stop. Duplicate no-op.
		return
	}
	cause := h.proc.Err()
	log.Warn().Err(cause).Str("module", "encoder.supervisor").Str("stream", string(h.streamID)).
		Str("session", string(h.sessionID)).Msg("encoder exited unexpectedly")
	s.mu.Lock()
	fn := s.onExit
	s.mu.Unlock()
	if fn != nil {
		fn(h.streamID, h.sessionID, cause)
	}
}

// release is the single cleanup routine shared by explicit stop,
// session stop and unexpected exit. It removes the handle and the
// audio settings riding on it.
func (s *Supervisor) release(streamID domain.StreamID) (*handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[streamID]
	if !ok {
		return nil, false
	}
	delete(s.handles, streamID)
	if s.bySession[h.sessionID] == streamID {
		delete(s.bySession, h.sessionID)
	}
	return h, true
}
