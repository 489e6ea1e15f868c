package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"mediadrop/internal/core"
	"mediadrop/internal/server/service"
	"mediadrop/internal/server/storage"
	"mediadrop/internal/tus"
)

// HealthChecker reports whether the metadata database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains the HTTP handlers for the storage, resumable upload and
// media record APIs.
type Handler struct {
	svc     *service.UploadService
	db      HealthChecker
	baseURL string
}

func NewHandler(svc *service.UploadService, db HealthChecker, baseURL string) *Handler {
	return &Handler{svc: svc, db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

// HandlePutObject handles PUT /storage/v1/object/:bucket/*.
// The request body is the object. Cache-Control is stored with it and
// x-upsert: true allows overwriting an existing key.
func (h *Handler) HandlePutObject(c echo.Context) error {
	req := c.Request()
	meta := storage.ObjectMeta{
		ContentType:  req.Header.Get(echo.HeaderContentType),
		CacheControl: cacheControl(req.Header.Get("Cache-Control")),
	}

	result, err := h.svc.PutObject(
		req.Context(),
		userID(c),
		c.Param("bucket"),
		c.Param("*"),
		req.Body,
		req.ContentLength,
		meta,
		isTrue(req.Header.Get(tus.HeaderUpsert)),
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// HandleGetObject handles GET /storage/v1/object/public/:bucket/*.
func (h *Handler) HandleGetObject(c echo.Context) error {
	rc, info, err := h.svc.OpenObject(c.Request().Context(), c.Param("bucket"), c.Param("*"))
	if err != nil {
		return mapServiceError(c, err)
	}
	defer rc.Close()

	res := c.Response()
	if info.CacheControl != "" {
		res.Header().Set("Cache-Control", info.CacheControl)
	}
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	if !info.ModTime.IsZero() {
		res.Header().Set(echo.HeaderLastModified, info.ModTime.UTC().Format(http.TimeFormat))
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	if c.Request().Method == http.MethodHead {
		res.Header().Set(echo.HeaderContentType, contentType)
		return c.NoContent(http.StatusOK)
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

// HandleDeleteObject handles DELETE /storage/v1/object/:bucket/*.
func (h *Handler) HandleDeleteObject(c echo.Context) error {
	err := h.svc.DeleteObject(c.Request().Context(), userID(c), c.Param("bucket"), c.Param("*"))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "object deleted successfully",
	})
}

// HandleCreateRecord handles POST /rest/v1/media_files.
func (h *Handler) HandleCreateRecord(c echo.Context) error {
	var in core.MediaFileRecord
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}

	rec, err := h.svc.CreateRecord(c.Request().Context(), userID(c), in)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, service.ToRecord(rec))
}

// HandleListRecords handles GET /rest/v1/media_files.
func (h *Handler) HandleListRecords(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a number"})
		}
		limit = n
	}

	files, err := h.svc.ListRecords(c.Request().Context(), userID(c), limit)
	if err != nil {
		return mapServiceError(c, err)
	}

	records := make([]core.MediaFileRecord, 0, len(files))
	for _, f := range files {
		records = append(records, service.ToRecord(f))
	}
	return c.JSON(http.StatusOK, records)
}

// HandleDeleteRecord handles DELETE /rest/v1/media_files/:id.
func (h *Handler) HandleDeleteRecord(c echo.Context) error {
	if err := h.svc.DeleteRecord(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.svc.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_files":         stats.TotalFiles,
		"video_files":         stats.VideoFiles,
		"audio_files":         stats.AudioFiles,
		"active_sessions":     stats.ActiveSessions,
		"stored_bytes":        stats.TotalBytes,
		"stored_bytes_human":  humanize.IBytes(uint64(stats.TotalBytes)),
		"pending_bytes":       stats.PendingBytes,
		"pending_bytes_human": humanize.IBytes(uint64(stats.PendingBytes)),
	})
}

// mapServiceError translates service-layer errors into HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "upload session has expired"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrUnknownBucket):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bucket not found"})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	case errors.Is(err, service.ErrObjectExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "the resource already exists"})
	case errors.Is(err, service.ErrObjectMissing):
		return c.JSON(http.StatusConflict, echo.Map{"error": "referenced object does not exist"})
	case errors.Is(err, service.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate media record"})
	case errors.Is(err, service.ErrOffsetMismatch):
		return c.JSON(http.StatusConflict, echo.Map{"error": "upload offset does not match"})
	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// cacheControl accepts either a full header value or a bare max-age in
// seconds, which is what storage clients usually send.
func cacheControl(v string) string {
	if v == "" {
		return ""
	}
	if _, err := strconv.Atoi(v); err == nil {
		return "max-age=" + v
	}
	return v
}

func isTrue(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

// discard drains what is left of a request body so the connection can be
// reused after an early error.
func discard(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 1<<20))
}
