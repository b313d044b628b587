package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/domain/repository"
	"github.com/hszk-dev/clipstream/internal/usecase"
)

// Request/Response types

type CreateClipJobRequest struct {
	Reference  string `json:"reference"`
	ClipLength int    `json:"clip_length"`
	Tier       string `json:"tier"`
}

type ClipResponse struct {
	Index       int               `json:"index"`
	Start       float64           `json:"start"`
	End         float64           `json:"end"`
	Category    string            `json:"category"`
	Score       float64           `json:"score"`
	Captions    map[string]string `json:"captions,omitempty"`
	Resolution  string            `json:"resolution"`
	Watermarked bool              `json:"watermarked"`
	SizeBytes   int64             `json:"size_bytes"`
	DownloadURL string            `json:"download_url"`
}

type ClipJobResponse struct {
	ID            string         `json:"id"`
	Reference     string         `json:"reference"`
	ResourceID    string         `json:"resource_id"`
	ClipLength    int            `json:"clip_length"`
	Tier          string         `json:"tier"`
	Status        string         `json:"status"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Clips         []ClipResponse `json:"clips,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// ClipHandler handles clip job HTTP requests.
type ClipHandler struct {
	svc usecase.ClipJobService
}

// NewClipHandler creates a new ClipHandler.
func NewClipHandler(svc usecase.ClipJobService) *ClipHandler {
	return &ClipHandler{svc: svc}
}

// Create handles POST /v1/clips
func (h *ClipHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateClipJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request_too_large", "Request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if req.Reference == "" {
		Error(w, http.StatusBadRequest, "invalid_reference", "Reference is required")
		return
	}

	job, err := h.svc.CreateJob(r.Context(), usecase.CreateClipJobInput{
		Reference:  req.Reference,
		ClipLength: req.ClipLength,
		Tier:       req.Tier,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, toClipJobResponse(&usecase.ClipJobOutput{Job: job}))
}

// Get handles GET /v1/clips/{id}
func (h *ClipHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_job_id", "Job ID must be a valid UUID")
		return
	}

	out, err := h.svc.GetJob(r.Context(), jobID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toClipJobResponse(out))
}

func (h *ClipHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		Error(w, http.StatusNotFound, "job_not_found", "Clip job not found")
	case errors.Is(err, model.ErrInvalidReference):
		Error(w, http.StatusBadRequest, "invalid_reference", "Reference is not a recognised video URL or ID")
	case errors.Is(err, model.ErrInvalidTier):
		Error(w, http.StatusBadRequest, "invalid_tier", "Tier must be standard or premium")
	case errors.Is(err, model.ErrInvalidClipLength):
		Error(w, http.StatusBadRequest, "invalid_clip_length", "Clip length is out of range for the tier")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func toClipJobResponse(out *usecase.ClipJobOutput) ClipJobResponse {
	j := out.Job
	resp := ClipJobResponse{
		ID:            j.ID.String(),
		Reference:     j.Reference,
		ResourceID:    string(j.ResourceID),
		ClipLength:    j.ClipLength,
		Tier:          j.Tier.String(),
		Status:        j.Status.String(),
		FailureReason: string(j.FailureReason),
		CreatedAt:     j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     j.UpdatedAt.Format(time.RFC3339),
	}

	for _, d := range out.Downloads {
		captions := make(map[string]string, len(d.Captions))
		for p, c := range d.Captions {
			captions[string(p)] = c
		}
		resp.Clips = append(resp.Clips, ClipResponse{
			Index:       d.Index,
			Start:       d.Start,
			End:         d.End,
			Category:    d.Category,
			Score:       d.Score,
			Captions:    captions,
			Resolution:  d.Resolution,
			Watermarked: d.Watermarked,
			SizeBytes:   d.SizeBytes,
			DownloadURL: d.DownloadURL,
		})
	}
	return resp
}
