package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/handbox/internal/store"
)

// maxFramesPerPage bounds GET /api/sessions/{id}/frames.
const maxFramesPerPage = 1000

// SessionsHandler handles HTTP requests for recorded sessions.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler with the given store.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

type sessionResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Source        string `json:"source"`
	DisplayWidth  int    `json:"display_width"`
	DisplayHeight int    `json:"display_height"`
	StartedAt     string `json:"started_at"`
	EndedAt       string `json:"ended_at,omitempty"`
	Frames        int    `json:"frames"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type calibrationResponse struct {
	PlayerID     int     `json:"player_id"`
	Distance     float64 `json:"distance"`
	CalibratedAt string  `json:"calibrated_at"`
}

type sessionDetailResponse struct {
	sessionResponse
	Calibrations []calibrationResponse `json:"calibrations"`
}

type framesResponse struct {
	Frames []json.RawMessage `json:"frames"`
	// Next is the sequence to pass as after for the following page, or 0.
	Next int64 `json:"next"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:            s.ID,
		Name:          s.Name,
		Source:        s.Source,
		DisplayWidth:  s.DisplayWidth,
		DisplayHeight: s.DisplayHeight,
		StartedAt:     s.StartedAt.Format(timeLayout),
		Frames:        s.Frames,
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(timeLayout)
	}
	return resp
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/frames.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch {
	case rest == "frames" && r.Method == http.MethodGet:
		h.frames(w, r, id)
	case rest != "":
		http.NotFound(w, r)
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/sessions.
func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}.
func (h *SessionsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	cals, err := h.store.Calibrations().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get calibrations")
		return
	}

	response := sessionDetailResponse{
		sessionResponse: toSessionResponse(session),
		Calibrations:    make([]calibrationResponse, 0, len(cals)),
	}
	for _, c := range cals {
		response.Calibrations = append(response.Calibrations, calibrationResponse{
			PlayerID:     c.PlayerID,
			Distance:     c.Distance,
			CalibratedAt: c.CalibratedAt.Format(timeLayout),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionsHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// frames handles GET /api/sessions/{id}/frames?after=N&limit=M.
func (h *SessionsHandler) frames(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	query := r.URL.Query()
	after, err := parseInt(query.Get("after"), 0)
	if err != nil || after < 0 {
		writeError(w, http.StatusBadRequest, "Invalid after")
		return
	}
	limit, err := parseInt(query.Get("limit"), 100)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	if limit > maxFramesPerPage {
		limit = maxFramesPerPage
	}

	records, err := h.store.Frames().Range(id, after, int(limit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read frames")
		return
	}

	response := framesResponse{Frames: make([]json.RawMessage, 0, len(records))}
	for _, rec := range records {
		response.Frames = append(response.Frames, json.RawMessage(rec.Data))
	}
	if int64(len(records)) == limit {
		response.Next = records[len(records)-1].Sequence
	}

	writeJSON(w, http.StatusOK, response)
}

func parseInt(s string, fallback int64) (int64, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
