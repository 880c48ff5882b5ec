package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"guestwatch/internal/config"
	"guestwatch/internal/database"
	"guestwatch/internal/dispatch"
	"guestwatch/internal/realtime"
)

// HTTPHandler exposes the service's HTTP surface
type HTTPHandler struct {
	config           *config.Config
	logger           *slog.Logger
	dispatcher       *dispatch.Dispatcher
	watchlistRepo    *database.WatchlistRepository
	alertRepo        *database.AlertRepository
	notificationRepo *database.NotificationRepository
	hub              *realtime.Hub
	validate         *validator.Validate
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	cfg *config.Config,
	logger *slog.Logger,
	dispatcher *dispatch.Dispatcher,
	watchlistRepo *database.WatchlistRepository,
	alertRepo *database.AlertRepository,
	notificationRepo *database.NotificationRepository,
	hub *realtime.Hub,
) *HTTPHandler {
	return &HTTPHandler{
		config:           cfg,
		logger:           logger,
		dispatcher:       dispatcher,
		watchlistRepo:    watchlistRepo,
		alertRepo:        alertRepo,
		notificationRepo: notificationRepo,
		hub:              hub,
		validate:         validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ws", h.hub.HandleWebSocket)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/dispatch", h.TriggerDispatch)

		v1.POST("/watchlist", h.CreateWatchlistEntry)
		v1.GET("/watchlist", h.ListWatchlistEntries)
		v1.DELETE("/watchlist/:id", h.DeleteWatchlistEntry)

		v1.GET("/alerts", h.ListAlerts)
		v1.GET("/alerts/:id", h.GetAlert)
		v1.POST("/alerts/:id/resolve", h.ResolveAlert)

		v1.GET("/notifications", h.ListNotifications)
		v1.POST("/notifications/:id/read", h.MarkNotificationRead)
	}
}

// Health returns service health
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// DispatchRequest is the inbound trigger from the registration flow
type DispatchRequest struct {
	Guest dispatch.GuestSnapshot `json:"guest" validate:"required"`
	Hotel dispatch.HotelSnapshot `json:"hotel" validate:"required"`
}

// TriggerDispatch hands a guest registration to the watchlist pipeline.
// It returns 202 immediately; the pipeline runs in the background and its
// outcome never surfaces here.
func (h *HTTPHandler) TriggerDispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.dispatcher.Dispatch(req.Guest, req.Hotel)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// WatchlistEntryRequest is the payload for flagging a value
type WatchlistEntryRequest struct {
	Value       string `json:"value" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=id_number phone_number"`
	Reason      string `json:"reason" validate:"required"`
	AddedByID   string `json:"added_by_id" validate:"required"`
	AddedByRole string `json:"added_by_role" validate:"required,oneof=police regional_admin"`
}

// CreateWatchlistEntry flags an identity value
func (h *HTTPHandler) CreateWatchlistEntry(c *gin.Context) {
	var req WatchlistEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := &database.WatchlistEntry{
		Value:       req.Value,
		Kind:        database.ValueKind(req.Kind),
		Reason:      req.Reason,
		AddedByID:   req.AddedByID,
		AddedByRole: database.IdentityKind(req.AddedByRole),
	}

	if err := h.watchlistRepo.Create(c.Request.Context(), entry); err != nil {
		if errors.Is(err, database.ErrDuplicateValue) {
			c.JSON(http.StatusConflict, gin.H{"error": "value already flagged"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create watchlist entry"})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ListWatchlistEntries lists flagged values
func (h *HTTPHandler) ListWatchlistEntries(c *gin.Context) {
	limit, offset := pagination(c)

	entries, err := h.watchlistRepo.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list watchlist entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// DeleteWatchlistEntry removes a flagged value
func (h *HTTPHandler) DeleteWatchlistEntry(c *gin.Context) {
	if err := h.watchlistRepo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "watchlist entry not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListAlerts lists alerts by status
func (h *HTTPHandler) ListAlerts(c *gin.Context) {
	status := c.DefaultQuery("status", database.AlertStatusOpen)
	limit, offset := pagination(c)

	alerts, err := h.alertRepo.ListByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// GetAlert retrieves one alert
func (h *HTTPHandler) GetAlert(c *gin.Context) {
	alert, err := h.alertRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get alert"})
		return
	}

	c.JSON(http.StatusOK, alert)
}

// ResolveAlertRequest identifies who resolved the alert
type ResolveAlertRequest struct {
	ResolvedByID   string `json:"resolved_by_id" validate:"required"`
	ResolvedByRole string `json:"resolved_by_role" validate:"required,oneof=police regional_admin"`
}

// ResolveAlert transitions an alert to resolved. Resolving an already
// resolved alert succeeds without changing it.
func (h *HTTPHandler) ResolveAlert(c *gin.Context) {
	var req ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := h.alertRepo.Resolve(
		c.Request.Context(),
		c.Param("id"),
		req.ResolvedByID,
		database.IdentityKind(req.ResolvedByRole),
	)
	if err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve alert"})
		return
	}

	c.JSON(http.StatusOK, alert)
}

// ListNotifications lists a recipient's inbox
func (h *HTTPHandler) ListNotifications(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	kind := database.IdentityKind(c.Query("recipient_kind"))
	if recipientID == "" || !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id and recipient_kind are required"})
		return
	}
	limit, offset := pagination(c)

	notifications, err := h.notificationRepo.ListByRecipient(c.Request.Context(), recipientID, kind, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkNotificationRead flags a notification as read
func (h *HTTPHandler) MarkNotificationRead(c *gin.Context) {
	if err := h.notificationRepo.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// pagination parses limit/offset query params with sane bounds
func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
