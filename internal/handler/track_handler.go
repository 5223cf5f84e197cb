package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/jengzang/gpx-tracks-etl/internal/gpx"
	"github.com/jengzang/gpx-tracks-etl/internal/kinematics"
	"github.com/jengzang/gpx-tracks-etl/internal/models"
	"github.com/jengzang/gpx-tracks-etl/internal/pipeline"
	"github.com/jengzang/gpx-tracks-etl/internal/repository"
	"github.com/jengzang/gpx-tracks-etl/internal/service"
	"github.com/jengzang/gpx-tracks-etl/pkg/response"
)

// Ingester runs one uploaded document through the pipeline
type Ingester interface {
	ProcessDocument(ctx context.Context, source string, data []byte) (*pipeline.Report, error)
}

// RecentLister lists the latest published track reports
type RecentLister interface {
	Recent(ctx context.Context, limit int64) ([]pipeline.TrackReport, error)
}

// TrackHandler handles HTTP requests for GPX uploads and stored points
type TrackHandler struct {
	trackService   *service.TrackService
	ingester       Ingester
	recent         RecentLister
	maxUploadBytes int64
}

// NewTrackHandler creates a new track handler. recent may be nil.
func NewTrackHandler(trackService *service.TrackService, ingester Ingester, recent RecentLister, maxUploadBytes int64) *TrackHandler {
	return &TrackHandler{
		trackService:   trackService,
		ingester:       ingester,
		recent:         recent,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadTrack handles POST /api/v1/tracks. The document is either the raw
// request body or the multipart field "file".
func (h *TrackHandler) UploadTrack(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	source, data, err := h.readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	if mtype := mimetype.Detect(data); !isText(mtype) {
		response.Error(c, http.StatusUnsupportedMediaType, "expected a GPX document, got "+mtype.String())
		return
	}

	report, err := h.ingester.ProcessDocument(c.Request.Context(), source, data)
	if err != nil {
		_ = c.Error(err)
		response.ErrorWithData(c, ingestStatus(err), err.Error(), report)
		return
	}

	response.Success(c, report)
}

func (h *TrackHandler) readUpload(c *gin.Context) (string, []byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("failed to read multipart field \"file\": %w", err)
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return fh.Filename, data, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) == 0 {
		return "", nil, errors.New("empty request body")
	}
	return c.DefaultQuery("name", "upload.gpx"), data, nil
}

// isText reports whether m is text/plain or one of its descendants (XML, GPX)
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// ingestStatus maps a pipeline error to an HTTP status. Storage failures win
// over input problems when a document produced both.
func ingestStatus(err error) int {
	var (
		writeErr    *repository.WriteError
		parseErr    *gpx.ParseError
		invalidErr  *kinematics.InvalidPointError
		monotoneErr *kinematics.NonMonotonicTimeError
	)

	switch {
	case errors.As(err, &writeErr):
		return http.StatusInternalServerError
	case errors.Is(err, gpx.ErrEmptyTrack):
		return http.StatusUnprocessableEntity
	case errors.As(err, &parseErr), errors.As(err, &invalidErr), errors.As(err, &monotoneErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetTrackPoints handles GET /api/v1/tracks/points
func (h *TrackHandler) GetTrackPoints(c *gin.Context) {
	var filter models.TrackPointFilter

	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if filter.MaxSpeed > 0 && filter.MinSpeed > filter.MaxSpeed {
		response.BadRequest(c, "minSpeed must not exceed maxSpeed")
		return
	}

	result, err := h.trackService.GetTrackPoints(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// GetTrackPointByID handles GET /api/v1/tracks/points/:id
func (h *TrackHandler) GetTrackPointByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid track point ID")
		return
	}

	point, err := h.trackService.GetTrackPointByID(c.Request.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		response.NotFound(c, "Track point not found")
		return
	}
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, point)
}

// GetRecentTracks handles GET /api/v1/tracks/recent
func (h *TrackHandler) GetRecentTracks(c *gin.Context) {
	if h.recent == nil {
		response.NotFound(c, "Ingest notifications are disabled")
		return
	}

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid limit parameter")
		return
	}

	reports, err := h.recent.Recent(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"data":  reports,
		"count": len(reports),
	})
}
