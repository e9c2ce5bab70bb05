package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"regexp"
	"time"

	"reddit-reels/config"
	"reddit-reels/pipeline"

	"github.com/gin-gonic/gin"
)

var redditURLPattern = regexp.MustCompile(`^https?://(www\.)?reddit\.com/r/\w+/comments/\w+`)

// Handler exposes the pipeline over HTTP: start a generation, poll its
// progress, cancel it, and serve finished videos.
type Handler struct {
	cfg     *config.Config
	manager *pipeline.Manager
}

func NewHandler(cfg *config.Config, manager *pipeline.Manager) *Handler {
	return &Handler{cfg: cfg, manager: manager}
}

// SetupRouter wires all routes onto a gin engine
func SetupRouter(cfg *config.Config, manager *pipeline.Manager) *gin.Engine {
	h := NewHandler(cfg, manager)

	r := gin.Default()

	r.GET("/health", h.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/generate-video", h.GenerateVideo)
		apiGroup.GET("/progress/:scriptId", h.GetProgress)
		apiGroup.DELETE("/cancel/:scriptId", h.CancelGeneration)
	}

	r.Static("/videos", filepath.Join(cfg.Paths.PublicDir, "videos"))

	return r
}

type generateVideoRequest struct {
	RedditURL  string `json:"redditUrl" binding:"required"`
	Background string `json:"background"`
}

func (h *Handler) GenerateVideo(c *gin.Context) {
	var req generateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "redditUrl is required",
		})
		return
	}
	if !redditURLPattern.MatchString(req.RedditURL) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid Reddit URL format",
		})
		return
	}

	scriptID := h.manager.Start(pipeline.GenerateRequest{
		ThreadURL:  req.RedditURL,
		Background: req.Background,
	})

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data":    gin.H{"scriptId": scriptID},
		"message": "Video generation started",
	})
}

func (h *Handler) GetProgress(c *gin.Context) {
	status, err := h.manager.GetStatus(c.Param("scriptId"))
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownScript) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "script not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    status,
	})
}

func (h *Handler) CancelGeneration(c *gin.Context) {
	err := h.manager.Cancel(c.Param("scriptId"))
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownScript) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "script not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Video generation cancelled",
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "video generation service is healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
