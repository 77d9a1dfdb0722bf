package http

import (
	"context"
	"net/http"
	"strings"

	"castforge/internal/app"
	"castforge/internal/domain"
	"castforge/internal/hub"
	"castforge/internal/provider"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const credentialKey = "provider_token"

type startStreamRequest struct {
	SessionID    string              `json:"session_id"`
	InputSource  string              `json:"input_source"`
	IngestionURL string              `json:"ingestion_url"`
	StreamKey    string              `json:"stream_key"`
	BroadcastID  string              `json:"broadcast_id"`
	Video        *domain.VideoParams `json:"video"`
	Audio        *domain.AudioParams `json:"audio"`
}

// composeEndpoint concatenates the ingestion base and the access key
// into the single opaque destination the encoder is pointed at.
func composeEndpoint(base, key string) string {
	if base == "" {
		return ""
	}
	if key == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + key
}

func (h *Handlers) StartStream(c *gin.Context) {
	var req startStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	var video domain.VideoParams
	if req.Video != nil {
		video = *req.Video
	}
	var audio domain.AudioParams
	if req.Audio != nil {
		audio = *req.Audio
	}

	startReq := app.StartRequest{
		InputSource: req.InputSource,
		Endpoint:    composeEndpoint(req.IngestionURL, req.StreamKey),
		Video:       video,
		Audio:       audio,
		BroadcastID: req.BroadcastID,
	}
	if token, ok := sessions.Default(c).Get(credentialKey).(string); ok && token != "" {
		startReq.Credential = &provider.Credential{AccessToken: token}
	}

	res, err := h.Service.StartSession(c.Request.Context(), domain.SessionID(req.SessionID), startReq)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"stream_id": res.StreamID, "audio_settings": res.Audio})
}

func (h *Handlers) StopStream(c *gin.Context) {
	sessionID, err := h.Service.StopStream(domain.StreamID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"session_id": sessionID})
}

func (h *Handlers) GetStreamInfo(c *gin.Context) {
	info, err := h.Service.Streams.Info(domain.StreamID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"stream": info})
}

func (h *Handlers) UpdateStreamAudio(c *gin.Context) {
	var patch domain.AudioPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	settings, err := h.Service.Streams.UpdateAudio(domain.StreamID(c.Param("id")), patch)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"audio_settings": settings})
}

type storeCredentialRequest struct {
	AccessToken string `json:"access_token"`
}

// StoreCredential stashes the opaque provider token in the cookie
// session. Token exchange itself happens outside this service.
func (h *Handlers) StoreCredential(c *gin.Context) {
	var req storeCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AccessToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "access_token required"})
		return
	}
	store := sessions.Default(c)
	store.Set(credentialKey, req.AccessToken)
	if err := store.Save(); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents upgrades the connection and parks it on the hub. Each
// connection gets its own observer id, so two tabs of one client count
// as two observers.
func (h *Handlers) HandleEvents(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}

	observerID := hub.ObserverID(uuid.NewString())
	log.Info().Str("module", "adapters.http").Str("observer", string(observerID)).
		Str("client", c.GetString("client_token")).Msg("new events connection")

	if h.Config.ReadLimit > 0 {
		ws.SetReadLimit(h.Config.ReadLimit)
	}
	obs := hub.NewWSObserver(observerID, ws, h.Config.SendBuffer, h.Config.PingPeriod)
	h.Metrics.ObserverConnected()
	obs.OnClose(h.Metrics.ObserverDisconnected)
	obs.Serve(ctx, h.Hub)
}
