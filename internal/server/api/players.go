package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/handbox/internal/calibration"
)

// PlayersHandler serves the latest tracker snapshot.
type PlayersHandler struct {
	tracker Tracker
}

// NewPlayersHandler creates a new PlayersHandler.
func NewPlayersHandler(t Tracker) *PlayersHandler {
	return &PlayersHandler{tracker: t}
}

// ServeHTTP handles GET /api/players.
func (h *PlayersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, _ := h.tracker.Latest()
	writeJSON(w, http.StatusOK, NewSnapshot(res))
}

type statusResponse struct {
	Ready       bool                 `json:"ready"`
	Frame       uint64               `json:"frame"`
	Players     int                  `json:"players"`
	Status      []string             `json:"status"`
	Calibration calibration.Progress `json:"calibration"`
}

// StatusHandler serves the tracker's status lines and calibration progress.
type StatusHandler struct {
	tracker Tracker
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(t Tracker) *StatusHandler {
	return &StatusHandler{tracker: t}
}

// ServeHTTP handles GET /api/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, ready := h.tracker.Latest()
	status := res.Status
	if status == nil {
		status = []string{}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Ready:       ready,
		Frame:       res.Frame,
		Players:     len(res.Players),
		Status:      status,
		Calibration: res.Calibration,
	})
}

// CalibrationHandler starts and cancels calibrations.
type CalibrationHandler struct {
	tracker Tracker
}

// NewCalibrationHandler creates a new CalibrationHandler.
func NewCalibrationHandler(t Tracker) *CalibrationHandler {
	return &CalibrationHandler{tracker: t}
}

// ServeHTTP handles /api/calibrate.
//
//	GET    returns the current progress
//	POST   requests a calibration (202, or 409 while one is running)
//	DELETE cancels a running calibration (204)
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		res, _ := h.tracker.Latest()
		writeJSON(w, http.StatusOK, res.Calibration)

	case http.MethodPost:
		if err := h.tracker.Calibrate(); err != nil {
			if errors.Is(err, calibration.ErrInProgress) {
				writeError(w, http.StatusConflict, "Calibration already in progress")
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Failed to start calibration")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "calibration requested"})

	case http.MethodDelete:
		if err := h.tracker.CancelCalibration(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Failed to cancel calibration")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
