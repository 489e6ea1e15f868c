package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"mediadrop/internal/server/service"
	"mediadrop/internal/tus"
)

const resumablePath = "/storage/v1/upload/resumable"

// HandleTusOptions handles OPTIONS /storage/v1/upload/resumable.
func (h *Handler) HandleTusOptions(maxSize int64) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Response().Header()
		hdr.Set(tus.HeaderVersion, tus.Version)
		hdr.Set(tus.HeaderExtension, tus.Extensions)
		hdr.Set(tus.HeaderMaxSize, strconv.FormatInt(maxSize, 10))
		return c.NoContent(http.StatusNoContent)
	}
}

// HandleCreateSession handles POST /storage/v1/upload/resumable.
// The target object is described by Upload-Metadata.
func (h *Handler) HandleCreateSession(c echo.Context) error {
	req := c.Request()

	length, err := strconv.ParseInt(req.Header.Get(tus.HeaderUploadLength), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Upload-Length is required"})
	}
	meta, err := tus.ParseMetadata(req.Header.Get(tus.HeaderUploadMetadata))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid Upload-Metadata: " + err.Error()})
	}

	session, err := h.svc.CreateSession(req.Context(), userID(c), service.CreateSessionInput{
		Length:       length,
		Bucket:       meta[tus.MetaBucket],
		ObjectKey:    meta[tus.MetaObject],
		ContentType:  meta[tus.MetaContentType],
		CacheControl: cacheControl(meta[tus.MetaCacheControl]),
		Upsert:       isTrue(req.Header.Get(tus.HeaderUpsert)),
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderLocation, h.baseURL+resumablePath+"/"+session.ID)
	c.Response().Header().Set(tus.HeaderUploadOffset, "0")
	return c.NoContent(http.StatusCreated)
}

// HandleSessionOffset handles HEAD /storage/v1/upload/resumable/:id.
func (h *Handler) HandleSessionOffset(c echo.Context) error {
	session, err := h.svc.GetSession(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}

	hdr := c.Response().Header()
	hdr.Set(tus.HeaderUploadOffset, strconv.FormatInt(session.Offset, 10))
	hdr.Set(tus.HeaderUploadLength, strconv.FormatInt(session.Length, 10))
	hdr.Set("Cache-Control", "no-store")
	return c.NoContent(http.StatusOK)
}

// HandleAppendChunk handles PATCH /storage/v1/upload/resumable/:id.
func (h *Handler) HandleAppendChunk(c echo.Context) error {
	req := c.Request()
	if req.Header.Get(echo.HeaderContentType) != tus.OffsetContentType {
		discard(req.Body)
		return c.JSON(http.StatusUnsupportedMediaType, echo.Map{
			"error": "Content-Type must be " + tus.OffsetContentType,
		})
	}
	offset, err := strconv.ParseInt(req.Header.Get(tus.HeaderUploadOffset), 10, 64)
	if err != nil || offset < 0 {
		discard(req.Body)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Upload-Offset is required"})
	}

	newOffset, err := h.svc.AppendChunk(req.Context(), userID(c), c.Param("id"), offset, req.Body)
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Response().Header().Set(tus.HeaderUploadOffset, strconv.FormatInt(newOffset, 10))
	return c.NoContent(http.StatusNoContent)
}

// HandleTerminateSession handles DELETE /storage/v1/upload/resumable/:id.
func (h *Handler) HandleTerminateSession(c echo.Context) error {
	if err := h.svc.TerminateSession(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
