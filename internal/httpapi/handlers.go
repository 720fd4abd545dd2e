package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"giveaway-bot/internal/model"
	"giveaway-bot/internal/service"
)

// Giveaways is the part of the giveaway service the HTTP API uses.
type Giveaways interface {
	Create(ctx context.Context, params service.CreateParams) (*service.CreateResult, error)
	Get(id int64) (*model.Giveaway, error)
	List() []*model.Giveaway
}

// number accepts both JSON numbers and numeric strings, as HTML forms tend to send the latter.
type number int64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(data)), `"`))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	*n = number(v)
	return nil
}

type createRequest struct {
	Title    string `json:"title"`
	Prize    string `json:"prize"`
	Duration number `json:"duration"`
	Winners  number `json:"winners"`
}

// Handler serves the giveaway endpoints.
type Handler struct {
	giveaways Giveaways
}

// NewHandler creates a new Handler.
func NewHandler(giveaways Giveaways) *Handler {
	return &Handler{giveaways: giveaways}
}

// CreateGiveaway handles POST /create-giveaway.
func (h *Handler) CreateGiveaway(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "msg": "Invalid request body"})
		return
	}

	// A client hanging up must not stop the announcement of a giveaway that was already saved.
	ctx := context.WithoutCancel(c.Request.Context())

	res, err := h.giveaways.Create(ctx, service.CreateParams{
		Title:           req.Title,
		Prize:           req.Prize,
		DurationSeconds: int64(req.Duration),
		WinnerCount:     int(req.Winners),
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "msg": verr.Error(), "field": verr.Field})
			return
		}

		log.Error().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("Failed to create giveaway")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "msg": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"giveaway":  res.Giveaway,
		"announced": res.Announced,
	})
}

// ListGiveaways handles GET /giveaways.
func (h *Handler) ListGiveaways(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "giveaways": h.giveaways.List()})
}

// GetGiveaway handles GET /giveaways/:id.
func (h *Handler) GetGiveaway(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "msg": "Invalid giveaway id", "field": "id"})
		return
	}

	g, err := h.giveaways.Get(id)
	if errors.Is(err, service.ErrGiveawayNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "msg": "Giveaway not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "msg": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "giveaway": g})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
