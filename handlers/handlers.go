package handlers

import (
	"errors"
	"net/http"
	"time"

	"snapshot-server/database"
	"snapshot-server/extrafields"
	"snapshot-server/models"
	"snapshot-server/ratelimit"
	"snapshot-server/shortcode"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// MaxExtraPayloadBytes caps the extra JSON payload accepted on upload. The
// payload is normalized recursively on every retrieval, so its size is
// bounded before it ever reaches storage.
const MaxExtraPayloadBytes = 256 * 1024

// Publisher publishes stored snapshot summaries for downstream analysis.
type Publisher interface {
	Publish(message interface{}) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	logs      *database.LogsService
	codes     *shortcode.Registry
	limiter   *ratelimit.Limiter
	publisher Publisher
}

// NewHandlers creates a new handlers instance. publisher may be nil when no
// message broker is configured.
func NewHandlers(logs *database.LogsService, codes *shortcode.Registry, limiter *ratelimit.Limiter, publisher Publisher) *Handlers {
	return &Handlers{
		logs:      logs,
		codes:     codes,
		limiter:   limiter,
		publisher: publisher,
	}
}

// LogView is the retrieval response: the snapshot fields plus the
// normalized extra-data tree.
type LogView struct {
	UUID             string             `json:"uuid"`
	Requester        string             `json:"requester"`
	PluginName       string             `json:"pluginName"`
	PluginVersion    string             `json:"pluginVersion"`
	ServerPort       int                `json:"serverPort"`
	ServerVersion    string             `json:"serverVersion"`
	ServerSoftware   string             `json:"serverSoftware"`
	ServerOnlineMode bool               `json:"serverOnlineMode"`
	Timestamp        time.Time          `json:"timestamp"`
	Extra            string             `json:"extra,omitempty"`
	ExtraFields      *extrafields.Field `json:"extraFields,omitempty"`
}

// HealthCheck returns a simple health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Service:   "snapshot-server",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// UploadLog handles POST /api/v1/upload: admission control per submitter,
// then persistence, then debug code issuance.
func (h *Handlers) UploadLog(c *gin.Context) {
	var req models.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Errorf("Failed to get the argument in /upload call: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid upload payload"})
		return
	}

	if len(req.Extra) > MaxExtraPayloadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"status": "error", "message": "Extra payload too large"})
		return
	}

	serverID := ratelimit.RequestKey(c.Request, req.ServerPort)
	if !h.limiter.TryConsume(serverID) {
		log.Warnf("Rate limit exceeded for server: %s", serverID)
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "rate_limited", "message": "Too many requests. Please try again later."})
		return
	}

	entry, err := h.logs.SaveLog(c.Request.Context(), &req)
	if err != nil {
		log.Errorf("Failed to write server log: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to save the snapshot."})
		return
	}

	code := h.codes.Issue(entry.UUID)
	log.Infof("Server log uploaded successfully. Debug code: %s, Server: %s", code, serverID)

	go h.publishUploaded(entry, code)

	c.JSON(http.StatusOK, models.UploadResponse{Status: "success", LogID: code})
}

// GetLog handles GET /api/v1/log/:code
func (h *Handlers) GetLog(c *gin.Context) {
	h.renderLog(c, c.Param("code"))
}

// GetLogByQuery handles GET /api/v1/log?code=...
func (h *Handlers) GetLogByQuery(c *gin.Context) {
	code, _ := c.GetQuery("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Debug code parameter is required"})
		return
	}
	h.renderLog(c, code)
}

func (h *Handlers) renderLog(c *gin.Context, code string) {
	prefix, err := h.codes.Normalize(code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid debug code format"})
		return
	}

	entry, err := h.logs.FindByCodePrefix(c.Request.Context(), prefix)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found", "message": "Log not found for code: " + h.codes.Issue(prefix)})
		return
	case errors.Is(err, database.ErrAmbiguousCode):
		log.Warnf("Ambiguous debug code %s", prefix)
		c.JSON(http.StatusConflict, gin.H{"status": "ambiguous", "message": "Debug code matches more than one snapshot"})
		return
	case err != nil:
		log.Errorf("Error retrieving server log with code %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "An error occurred while retrieving the log."})
		return
	}

	log.Infof("Retrieved server log for code: %s", prefix)

	c.JSON(http.StatusOK, LogView{
		UUID:             entry.UUID,
		Requester:        entry.Requester,
		PluginName:       entry.PluginName,
		PluginVersion:    entry.PluginVersion,
		ServerPort:       entry.ServerPort,
		ServerVersion:    entry.ServerVersion,
		ServerSoftware:   entry.ServerSoftware,
		ServerOnlineMode: entry.ServerOnlineMode,
		Timestamp:        entry.Timestamp,
		Extra:            string(entry.Extra),
		ExtraFields:      extrafields.NormalizeRaw(entry.Extra),
	})
}

func (h *Handlers) publishUploaded(entry *models.ServerLog, code string) {
	if h.publisher == nil {
		return
	}

	event := models.UploadedEvent{
		UUID:           entry.UUID,
		Code:           code,
		Requester:      entry.Requester,
		PluginName:     entry.PluginName,
		PluginVersion:  entry.PluginVersion,
		ServerVersion:  entry.ServerVersion,
		ServerSoftware: entry.ServerSoftware,
		Timestamp:      entry.Timestamp,
	}
	if err := h.publisher.Publish(event); err != nil {
		log.Errorf("Failed to publish snapshot %s to RabbitMQ: %v", entry.UUID, err)
		return
	}
	log.Infof("Published snapshot %s to RabbitMQ for analysis", entry.UUID)
}
