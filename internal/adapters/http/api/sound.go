package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/deepp5/catrack/internal/domain/model"
)

const maxRequestBody = 1 << 20

// soundRequest carries the parameters of every /sound route. Query
// parameters win; a JSON body may supply the ones the query omits.
type soundRequest struct {
	MachineID string `json:"machine_id"`
	Mode      string `json:"mode"`
	MediaID   string `json:"media_id"`
}

func (q soundRequest) key() model.Key {
	return model.Key{MachineID: strings.TrimSpace(q.MachineID), Mode: strings.TrimSpace(q.Mode)}
}

// SoundHandler serves baseline rebuilds, clip checks and their queries.
type SoundHandler struct {
	deps        Dependencies
	defaultMode string
	maxLimit    int
}

// NewSoundHandler creates a new sound handler.
func NewSoundHandler(deps Dependencies, defaultMode string, maxLimit int) *SoundHandler {
	return &SoundHandler{deps: deps, defaultMode: defaultMode, maxLimit: maxLimit}
}

func (h *SoundHandler) parse(r *http.Request) (soundRequest, error) {
	q := r.URL.Query()
	req := soundRequest{
		MachineID: q.Get("machine_id"),
		Mode:      q.Get("mode"),
		MediaID:   q.Get("media_id"),
	}

	if r.Body != nil && strings.Contains(r.Header.Get("Content-Type"), "json") {
		var body soundRequest
		err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&body)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			return req, fmt.Errorf("decode body: %w", err)
		default:
			req.MachineID = firstNonEmpty(req.MachineID, body.MachineID)
			req.Mode = firstNonEmpty(req.Mode, body.Mode)
			req.MediaID = firstNonEmpty(req.MediaID, body.MediaID)
		}
	}

	if strings.TrimSpace(req.Mode) == "" {
		req.Mode = h.defaultMode
	}
	if strings.TrimSpace(req.MachineID) == "" {
		return req, errors.New("missing machine_id")
	}
	return req, nil
}

// HandleRebuild handles POST /sound/baseline/rebuild.
func (h *SoundHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	const op = "api.rebuild_baseline"
	if r.Method != http.MethodPost {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	req, err := h.parse(r)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.RebuildBaseline(r.Context(), req.key())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCheck handles POST /sound/check.
func (h *SoundHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.check_clip"
	if r.Method != http.MethodPost {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	req, err := h.parse(r)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	mediaID := strings.TrimSpace(req.MediaID)
	if mediaID == "" {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("missing media_id")))
		return
	}
	res, err := h.deps.ScoreClip(r.Context(), mediaID, req.key())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetBaseline handles GET /sound/baseline.
func (h *SoundHandler) HandleGetBaseline(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_baseline"
	if r.Method != http.MethodGet {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	req, err := h.parse(r)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.GetBaseline(r.Context(), req.key())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleListAssessments handles GET /sound/assessments. limit defaults to
// and is capped at the configured maximum.
func (h *SoundHandler) HandleListAssessments(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_assessments"
	if r.Method != http.MethodGet {
		fail(w, NewKind(op, ErrMethod))
		return
	}
	req, err := h.parse(r)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	limit := h.maxLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(w, WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be a positive integer, got %q", v)))
			return
		}
		limit = min(n, h.maxLimit)
	}

	list, err := h.deps.ListAssessments(r.Context(), req.key(), limit)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
