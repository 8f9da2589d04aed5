package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/api/middleware"
	"github.com/dvloznov/budget-bot/internal/jobs"
)

// MaxReceiptBytes bounds uploaded receipt photos.
const MaxReceiptBytes = 10 << 20

// ReceiptsHandler accepts receipt photos and queues them for reading.
type ReceiptsHandler struct {
	uploader  ReceiptUploader
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler. A nil uploader disables
// uploads.
func NewReceiptsHandler(uploader ReceiptUploader, publisher jobs.Publisher, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		uploader:  uploader,
		publisher: publisher,
		log:       log,
	}
}

// Upload handles POST /api/receipts?user_id=
// The request body is the photo itself.
func (h *ReceiptsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Receipt uploads are not configured")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxReceiptBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Receipt photo is too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty receipt photo")
		return
	}

	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i != -1 {
		contentType = contentType[:i]
	}
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		middleware.WriteError(w, http.StatusUnsupportedMediaType, "Expected an image, got "+contentType)
		return
	}

	ctx := r.Context()

	gcsURI, err := h.uploader.UploadReceipt(ctx, userID, data, contentType)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to upload receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload receipt")
		return
	}

	job := jobs.NewProcessReceiptJob(userID, gcsURI)
	if err := h.publisher.Publish(ctx, job); err != nil {
		h.log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Failed to enqueue receipt job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue receipt job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", userID).
		Str("gcs_uri", gcsURI).
		Int("bytes", len(data)).
		Msg("Receipt job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  string(job.Status),
	})
}
