// Package provider is the boundary to the remote broadcast platform.
// The platform is opaque: we hand it a token-bearing credential and a
// desired transition, and pass its success or failure straight through.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Credential is an opaque token bearer obtained out of band (OAuth
// exchange happens elsewhere); it is only carried through to the
// platform.
type Credential struct {
	AccessToken string `json:"access_token"`
}

// Error is an opaque provider failure, message included verbatim.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "provider: " + e.Message }

// Provider transitions a remote broadcast between provider-defined
// status strings ("testing", "live", "complete", ...).
type Provider interface {
	Transition(ctx context.Context, cred Credential, broadcastID, status string) error
}

// HTTP talks to the platform's REST surface.
type HTTP struct {
	base   string
	client *http.Client
}

func NewHTTP(base string) *HTTP {
	return &HTTP{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTP) Transition(ctx context.Context, cred Credential, broadcastID, status string) error {
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return &Error{Message: err.Error()}
	}
	url := fmt.Sprintf("%s/broadcasts/%s/transition", p.base, broadcastID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &Error{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{Message: fmt.Sprintf("transition to %s: %s: %s", status, resp.Status, msg)}
	}
	log.Info().Str("module", "provider").Str("broadcast", broadcastID).Str("status", status).Msg("broadcast transitioned")
	return nil
}

// Nop ignores transitions. Used when no platform is configured and in
// tests.
type Nop struct{}

func (Nop) Transition(context.Context, Credential, string, string) error { return nil }
