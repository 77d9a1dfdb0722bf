package http

import (
	"net/http"

	"castforge/internal/app"
	"castforge/internal/config"
	"castforge/internal/domain"
	"castforge/internal/hub"
	"castforge/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Handlers carries the injected collaborators for every endpoint.
type Handlers struct {
	Service *app.Service
	Hub     *hub.Hub
	Metrics *metrics.Metrics
	Config  *config.Config
}

type createSessionRequest struct {
	Name        string `json:"name"`
	Platform    string `json:"platform"`
	Quality     string `json:"quality"`
	Public      bool   `json:"public"`
	Description string `json:"description"`
}

func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	sess, err := h.Service.Registry.CreateSession(app.CreateSpec{
		Name:        req.Name,
		Platform:    req.Platform,
		Quality:     req.Quality,
		Public:      req.Public,
		Description: req.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.Metrics.IncSessionsCreated()
	respond(c, http.StatusCreated, gin.H{"session": sess})
}

func (h *Handlers) ListSessions(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"sessions": h.Service.Registry.ListSessions()})
}

func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.Service.Registry.GetSession(domain.SessionID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"session": sess})
}

type updateSessionRequest struct {
	Name        *string `json:"name"`
	Platform    *string `json:"platform"`
	Quality     *string `json:"quality"`
	Public      *bool   `json:"public"`
	Description *string `json:"description"`
}

func (h *Handlers) UpdateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	sess, err := h.Service.Registry.UpdateSession(domain.SessionID(c.Param("id")), app.SessionPatch{
		Name:        req.Name,
		Platform:    req.Platform,
		Quality:     req.Quality,
		Public:      req.Public,
		Description: req.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"session": sess})
}

func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.Service.DeleteSession(domain.SessionID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{})
}

type addSceneRequest struct {
	Name    string   `json:"name"`
	Layout  string   `json:"layout"`
	Sources []string `json:"sources"`
}

func (h *Handlers) AddScene(c *gin.Context) {
	var req addSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	scene, err := h.Service.Registry.AddScene(domain.SessionID(c.Param("id")), app.SceneSpec{
		Name:    req.Name,
		Layout:  req.Layout,
		Sources: req.Sources,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"scene": scene})
}

type setStatusRequest struct {
	Status   string `json:"status"`
	Viewers  *int   `json:"viewers"`
	Duration *int64 `json:"duration"`
}

func (h *Handlers) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	err := h.Service.Registry.SetStatus(domain.SessionID(c.Param("id")), app.StatusUpdate{
		Status:   domain.Status(req.Status),
		Viewers:  req.Viewers,
		Duration: req.Duration,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{})
}

func (h *Handlers) ListDevices(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"devices": domain.DefaultDevices()})
}
