// Package httpapi exposes giveaway creation and read-only listing over HTTP.
package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"giveaway-bot/internal/config"
	"giveaway-bot/internal/metrics"
)

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(cfg *config.Config, giveaways Giveaways) *gin.Engine {
	router := gin.New()

	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSOrigins
	if len(corsConfig.AllowOrigins) == 0 || (len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*") {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", initDataHeader, requestIDHeader}
	router.Use(cors.New(corsConfig))

	h := NewHandler(giveaways)

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	if cfg.WebApp.RequireInitData {
		api.Use(InitDataAuth(cfg.Bot.Token, cfg.WebApp.InitDataTTL, cfg.Admin.ID))
	}
	api.POST("/create-giveaway", h.CreateGiveaway)
	api.GET("/giveaways", h.ListGiveaways)
	api.GET("/giveaways/:id", h.GetGiveaway)

	serveStatic(router, cfg.HTTP.StaticDir)

	return router
}

// serveStatic serves files from dir for any GET that matches no route.
func serveStatic(router *gin.Engine, dir string) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Debug().Str("dir", dir).Msg("Static directory not found, not serving files")
		return
	}

	files := http.FileServer(http.Dir(dir))
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "msg": "Not found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})
	log.Info().Str("dir", dir).Msg("Serving static files")
}

// NewServer wraps the handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
