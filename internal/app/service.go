package app

import (
	"context"
	"encoding/json"
	"fmt"

	"castforge/internal/domain"
	"castforge/internal/encoder"
	"castforge/internal/hub"
	"castforge/internal/metrics"
	"castforge/internal/provider"
	"github.com/rs/zerolog/log"
)

// Service couples the registry, the encoder supervisor, the event hub
// and the broadcast-provider boundary into the session lifecycle:
// created -> live -> ended, with aborted reachable from live when the
// encoder dies on its own.
type Service struct {
	Registry *Registry
	Streams  *encoder.Supervisor
	Hub      *hub.Hub
	Provider provider.Provider
	Metrics  *metrics.Metrics
}

func NewService(reg *Registry, sup *encoder.Supervisor, h *hub.Hub, prov provider.Provider, m *metrics.Metrics) *Service {
	s := &Service{Registry: reg, Streams: sup, Hub: h, Provider: prov, Metrics: m}
	sup.OnExit(s.onStreamExit)
	return s
}

// StartRequest carries everything a start command needs. Credential and
// BroadcastID are optional; when present the remote broadcast is
// transitioned to live after the encoder launches.
type StartRequest struct {
	InputSource string
	Endpoint    string
	Video       domain.VideoParams
	Audio       domain.AudioParams
	Credential  *provider.Credential
	BroadcastID string
}

// StartResult is returned from a successful start.
type StartResult struct {
	StreamID domain.StreamID      `json:"stream_id"`
	Audio    domain.AudioSettings `json:"audio_settings"`
}

// StatusEvent is the payload published on stream:status transitions.
type StatusEvent struct {
	SessionID domain.SessionID `json:"session_id"`
	StreamID  domain.StreamID  `json:"stream_id"`
	Status    domain.Status    `json:"status"`
	Error     string           `json:"error,omitempty"`
}

// StartSession launches the encoder for the session and moves it to
// live. A session that already owns a live handle is rejected; a
// terminal session cannot be restarted, a fresh one must be created.
func (s *Service) StartSession(ctx context.Context, id domain.SessionID, req StartRequest) (StartResult, error) {
	sess, err := s.Registry.GetSession(id)
	if err != nil {
		return StartResult{}, err
	}
	if sess.Status == domain.StatusLive {
		return StartResult{}, fmt.Errorf("%w: session %s", domain.ErrAlreadyActive, id)
	}
	if sess.Status.Terminal() {
		return StartResult{}, fmt.Errorf("%w: session %s is %s, create a new session to go live again", domain.ErrValidation, id, sess.Status)
	}

	streamID, audio, err := s.Streams.Start(ctx, id, req.InputSource, req.Endpoint, req.Video, req.Audio)
	if err != nil {
		return StartResult{}, err
	}

	if err := s.Registry.MarkLive(id, streamID); err != nil {
		// Session deleted during launch; tear the handle back down.
		_, _ = s.Streams.Stop(streamID)
		return StartResult{}, err
	}

	if req.Credential != nil && req.BroadcastID != "" {
		if err := s.Provider.Transition(ctx, *req.Credential, req.BroadcastID, "live"); err != nil {
			log.Error().Err(err).Str("module", "app.service").Str("session", string(id)).Msg("provider transition failed, stopping stream")
			_, _ = s.Streams.Stop(streamID)
			_ = s.Registry.MarkEnded(id)
			return StartResult{}, err
		}
	}

	s.Metrics.IncStreamsStarted()
	s.publishStatus(StatusEvent{SessionID: id, StreamID: streamID, Status: domain.StatusLive})
	return StartResult{StreamID: streamID, Audio: audio}, nil
}

// StopStream terminates the encoder and moves the owning session to
// ended. The second stop for the same stream id reports NotFound.
func (s *Service) StopStream(streamID domain.StreamID) (domain.SessionID, error) {
	sessionID, err := s.Streams.Stop(streamID)
	if err != nil {
		return "", err
	}
	if err := s.Registry.MarkEnded(sessionID); err != nil {
		// Record already deleted; the handle is gone either way.
		log.Debug().Str("module", "app.service").Str("stream", string(streamID)).Msg("stopped stream of deleted session")
	}
	s.Metrics.IncStreamsStopped()
	s.publishStatus(StatusEvent{SessionID: sessionID, StreamID: streamID, Status: domain.StatusEnded})
	return sessionID, nil
}

// DeleteSession cascades: any live handle is force-stopped before the
// record is removed, so no encoder process is ever orphaned.
func (s *Service) DeleteSession(id domain.SessionID) error {
	if streamID, ok := s.Streams.Active(id); ok {
		if _, err := s.Streams.Stop(streamID); err == nil {
			s.Metrics.IncStreamsStopped()
			log.Info().Str("module", "app.service").Str("session", string(id)).Str("stream", string(streamID)).Msg("stopped live stream before delete")
		}
	}
	return s.Registry.DeleteSession(id)
}

// onStreamExit handles asynchronous process-exit notifications. Only
// genuinely unexpected exits arrive here; exits after an explicit stop
// were already collapsed by the supervisor.
func (s *Service) onStreamExit(streamID domain.StreamID, sessionID domain.SessionID, cause error) {
	applied := s.Registry.MarkAborted(sessionID, streamID)
	if !applied {
		log.Debug().Str("module", "app.service").Str("stream", string(streamID)).Msg("stale exit notification")
	}
	s.Metrics.IncStreamsAborted()

	ev := StatusEvent{SessionID: sessionID, StreamID: streamID, Status: domain.StatusAborted}
	if cause != nil {
		ev.Error = cause.Error()
	}
	s.publishStatus(ev)
}

func (s *Service) publishStatus(ev StatusEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.service").Msg("marshal status event")
		return
	}
	// System publishes carry no sender, so every observer receives them.
	s.Hub.Publish("", hub.TopicStreamStatus, payload)
	s.Metrics.IncEventsPublished(string(hub.TopicStreamStatus))
}
