package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"mediadrop/internal/server/config"
	"mediadrop/internal/server/metrics"
	"mediadrop/internal/tus"
)

// SetupRouter creates and configures the echo router with all routes and
// middleware. observer may be nil, which disables /metrics.
func SetupRouter(handler *Handler, cfg *config.Config, verifier TokenVerifier, observer *metrics.Observer, limiter *RateLimiter) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderContentType, echo.HeaderAuthorization, "Cache-Control",
			tus.HeaderResumable, tus.HeaderUploadOffset, tus.HeaderUploadLength,
			tus.HeaderUploadMetadata, tus.HeaderUpsert,
		},
		ExposeHeaders: []string{
			echo.HeaderLocation, tus.HeaderResumable, tus.HeaderUploadOffset,
			tus.HeaderUploadLength, tus.HeaderVersion, tus.HeaderExtension, tus.HeaderMaxSize,
		},
	}))
	if observer != nil {
		e.Use(Metrics(observer))
	}
	e.Use(RequestLogger())

	requireAuth := RequireAuth(verifier)

	// Health, stats and metrics
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)
	if observer != nil {
		e.GET("/metrics", echo.WrapHandler(observer.Handler()))
	}

	// Objects. Writes are rate-limited per IP.
	objects := e.Group("/storage/v1/object")
	objects.GET("/public/:bucket/*", handler.HandleGetObject)
	objects.HEAD("/public/:bucket/*", handler.HandleGetObject)
	objects.PUT("/:bucket/*", handler.HandlePutObject, limiter.Middleware(), requireAuth)
	objects.DELETE("/:bucket/*", handler.HandleDeleteObject, requireAuth)

	// Resumable uploads
	resumable := e.Group(resumablePath, TusHeaders())
	resumable.OPTIONS("", handler.HandleTusOptions(cfg.MaxFileSize))
	resumable.POST("", handler.HandleCreateSession, limiter.Middleware(), requireAuth)
	resumable.HEAD("/:id", handler.HandleSessionOffset, requireAuth)
	resumable.PATCH("/:id", handler.HandleAppendChunk, requireAuth)
	resumable.DELETE("/:id", handler.HandleTerminateSession, requireAuth)

	// Media records
	records := e.Group("/rest/v1/media_files", requireAuth)
	records.POST("", handler.HandleCreateRecord)
	records.GET("", handler.HandleListRecords)
	records.DELETE("/:id", handler.HandleDeleteRecord)

	return e
}
