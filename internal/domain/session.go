// Package domain contains entity without logic, just meta-data
package domain

import "time"

type (
	SessionID string
	SceneID   string
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusCreated Status = "created"
	StatusLive    Status = "live"
	StatusEnded   Status = "ended"
	StatusAborted Status = "aborted"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusAborted
}

// Scene is a child of exactly one session. Scenes are appended, never
// reordered or removed.
type Scene struct {
	ID      SceneID  `json:"id"`
	Name    string   `json:"name"`
	Layout  string   `json:"layout"`
	Sources []string `json:"sources"`
}

// Session is a user-configured broadcast intent, independent of any
// running encoder process. Owned exclusively by the registry; mutated
// only through registry operations.
type Session struct {
	ID          SessionID  `json:"id"`
	Name        string     `json:"name"`
	Platform    string     `json:"platform"`
	Quality     string     `json:"quality"`
	Public      bool       `json:"public"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	// StreamID is the encoder process instance currently (or last)
	// bound to this session. Empty before the first start.
	StreamID StreamID `json:"stream_id,omitempty"`
	// Viewers and Duration hold the latest externally reported values;
	// they are never computed internally.
	Viewers   int        `json:"viewers"`
	Duration  int64      `json:"duration"`
	Scenes    []Scene    `json:"scenes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy safe to hand out of the registry.
func (s *Session) Clone() *Session {
	cp := *s
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		cp.UpdatedAt = &t
	}
	cp.Scenes = make([]Scene, len(s.Scenes))
	for i, sc := range s.Scenes {
		cp.Scenes[i] = sc
		cp.Scenes[i].Sources = append([]string(nil), sc.Sources...)
	}
	return &cp
}
