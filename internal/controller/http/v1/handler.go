package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/go-chi/chi/v5"
)

// SamplesRepository is the read side of the tracker the API exposes.
type SamplesRepository interface {
	Lookup(ctx context.Context, referralID string) (*domain.SampleRecord, error)
	Samples(ctx context.Context, limit, offset uint64) ([]*domain.SampleRecord, int, error)
}

type SamplesHandler struct {
	samplesRepository SamplesRepository
}

func NewSamplesHandler(samplesRepository SamplesRepository) *SamplesHandler {
	return &SamplesHandler{
		samplesRepository: samplesRepository,
	}
}

type GetSamplesResponse struct {
	Samples    []*domain.SampleRecord `json:"samples"`
	Pagination Pagination             `json:"pagination"`
}

func (h *SamplesHandler) GetSamples(w http.ResponseWriter, r *http.Request) {
	page, limit, err := h.parsePagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	offset := (page - 1) * limit

	samples, total, err := h.samplesRepository.Samples(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(GetSamplesResponse{
		Samples: samples,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int(limit) - 1) / int(limit),
		},
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Write(data)
}

func (h *SamplesHandler) GetSampleByReferralID(w http.ResponseWriter, r *http.Request) {
	referralID := chi.URLParam(r, "referral_id")

	sample, err := h.samplesRepository.Lookup(r.Context(), referralID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if sample == nil {
		http.Error(w, "no tracker row for "+referralID, http.StatusNotFound)
		return
	}

	data, err := json.Marshal(sample)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Write(data)
}

func (h *SamplesHandler) parsePagination(r *http.Request) (page uint64, limit uint64, err error) {
	page, limit = 1, 10

	if p := r.URL.Query().Get("page"); p != "" {
		page, err = strconv.ParseUint(p, 10, 64)
		if err != nil || page == 0 {
			return 0, 0, errors.New("invalid page")
		}
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err = strconv.ParseUint(l, 10, 64)
		if err != nil || limit < 1 || limit > 100 {
			return 0, 0, errors.New("invalid limit, must be in [1;100]")
		}
	}

	return page, limit, nil
}
