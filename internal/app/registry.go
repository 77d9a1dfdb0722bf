package app

import (
	"fmt"
	"sync"
	"time"

	"castforge/internal/domain"
	"castforge/internal/ids"
	"github.com/rs/zerolog/log"
)

// CreateSpec carries the fields of a create-session request.
type CreateSpec struct {
	Name        string
	Platform    string
	Quality     string
	Public      bool
	Description string
}

// SessionPatch is a partial session update. Nil fields stay untouched.
// No cross-field consistency is enforced: changing the platform of a
// live session is allowed, matching the permissive reference behavior.
type SessionPatch struct {
	Name        *string
	Platform    *string
	Quality     *string
	Public      *bool
	Description *string
}

// SceneSpec carries the fields of an add-scene request.
type SceneSpec struct {
	Name    string
	Layout  string
	Sources []string
}

// StatusUpdate is an externally reported status change. Viewer count
// and duration are stored as given, never computed.
type StatusUpdate struct {
	Status   domain.Status
	Viewers  *int
	Duration *int64
}

// Registry owns every session record. All mutation goes through it;
// callers only ever see deep copies. Constructed once per process and
// injected, never a package global.
type Registry struct {
	idgen ids.Generator
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
	order    []domain.SessionID
}

func NewRegistry(gen ids.Generator) *Registry {
	return &Registry{
		idgen:    gen,
		now:      time.Now,
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

// CreateSession constructs a fresh record in status created. Fails only
// on missing name or platform.
func (r *Registry) CreateSession(spec CreateSpec) (*domain.Session, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrValidation)
	}
	if spec.Platform == "" {
		return nil, fmt.Errorf("%w: platform required", domain.ErrValidation)
	}

	s := &domain.Session{
		ID:          domain.SessionID(r.idgen.NewID()),
		Name:        spec.Name,
		Platform:    spec.Platform,
		Quality:     spec.Quality,
		Public:      spec.Public,
		Description: spec.Description,
		Status:      domain.StatusCreated,
		Scenes:      []domain.Scene{},
		CreatedAt:   r.now(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("session", string(s.ID)).Str("platform", s.Platform).Msg("session created")
	return s.Clone(), nil
}

// ListSessions returns all records in insertion order.
func (r *Registry) ListSessions() []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Session, 0, len(r.order))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s.Clone())
		}
	}
	return out
}

func (r *Registry) GetSession(id domain.SessionID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return s.Clone(), nil
}

// UpdateSession merges the provided fields and stamps UpdatedAt.
func (r *Registry) UpdateSession(id domain.SessionID, patch SessionPatch) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Platform != nil {
		s.Platform = *patch.Platform
	}
	if patch.Quality != nil {
		s.Quality = *patch.Quality
	}
	if patch.Public != nil {
		s.Public = *patch.Public
	}
	if patch.Description != nil {
		s.Description = *patch.Description
	}
	t := r.now()
	s.UpdatedAt = &t
	log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("session updated")
	return s.Clone(), nil
}

// DeleteSession removes the record unconditionally.
func (r *Registry) DeleteSession(id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	delete(r.sessions, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("session deleted")
	return nil
}

// AddScene appends a scene with a fresh identifier.
func (r *Registry) AddScene(id domain.SessionID, spec SceneSpec) (*domain.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	scene := domain.Scene{
		ID:      domain.SceneID(r.idgen.NewID()),
		Name:    spec.Name,
		Layout:  spec.Layout,
		Sources: append([]string(nil), spec.Sources...),
	}
	s.Scenes = append(s.Scenes, scene)
	log.Info().Str("module", "app.registry").Str("session", string(id)).Str("scene", string(scene.ID)).Msg("scene added")
	cp := scene
	cp.Sources = append([]string(nil), scene.Sources...)
	return &cp, nil
}

// SetStatus applies an externally reported lifecycle/viewer/duration
// update.
func (r *Registry) SetStatus(id domain.SessionID, upd StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	if upd.Status != "" {
		s.Status = upd.Status
	}
	if upd.Viewers != nil {
		s.Viewers = *upd.Viewers
	}
	if upd.Duration != nil {
		s.Duration = *upd.Duration
	}
	return nil
}

// MarkLive binds the stream id and enters the live state.
func (r *Registry) MarkLive(id domain.SessionID, streamID domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	s.Status = domain.StatusLive
	s.StreamID = streamID
	log.Info().Str("module", "app.registry").Str("session", string(id)).Str("stream", string(streamID)).Msg("session live")
	return nil
}

// MarkEnded enters the terminal ended state after an explicit stop.
func (r *Registry) MarkEnded(id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	s.Status = domain.StatusEnded
	log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("session ended")
	return nil
}

// MarkAborted enters the aborted terminal state after an unexpected
// encoder exit. Stale notifications are ignored: the transition only
// applies while the session is still live under the same stream id, so
// a deleted or already-stopped session is never resurrected.
func (r *Registry) MarkAborted(id domain.SessionID, streamID domain.StreamID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != domain.StatusLive || s.StreamID != streamID {
		return false
	}
	s.Status = domain.StatusAborted
	log.Warn().Str("module", "app.registry").Str("session", string(id)).Str("stream", string(streamID)).Msg("session aborted")
	return true
}
