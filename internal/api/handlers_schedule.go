package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkframe/inkframe/internal/schedule"
)

type scheduleResponse struct {
	Slots   []schedule.Assignment `json:"slots"`
	Default *schedule.Target      `json:"default,omitempty"`
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	slots, def := s.schedule.Snapshot()
	if slots == nil {
		slots = []schedule.Assignment{}
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Slots: slots, Default: def})
}

func (s *Server) handleSetSlot(w http.ResponseWriter, r *http.Request) {
	day, hour, ok := slotKey(w, r)
	if !ok {
		return
	}
	var t schedule.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeBadRequest(w, "malformed JSON body")
		return
	}
	if !validTarget(t) {
		writeBadRequest(w, "target kind must be \"instance\" or \"playlist\" and id must not be empty")
		return
	}
	if err := s.schedule.SetSlot(day, hour, t); err != nil {
		writeError(w, err)
		return
	}
	s.orch.NotifyScheduleChanged(r.Context())
	writeJSON(w, http.StatusOK, schedule.Assignment{Day: day, Hour: hour, Target: t})
}

func (s *Server) handleClearSlot(w http.ResponseWriter, r *http.Request) {
	day, hour, ok := slotKey(w, r)
	if !ok {
		return
	}
	if err := s.schedule.ClearSlot(day, hour); err != nil {
		writeError(w, err)
		return
	}
	s.orch.NotifyScheduleChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkSetSlots(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slots []schedule.Assignment `json:"slots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed JSON body")
		return
	}
	for _, a := range req.Slots {
		if !validTarget(a.Target) {
			writeBadRequest(w, "target kind must be \"instance\" or \"playlist\" and id must not be empty")
			return
		}
	}
	if err := s.schedule.BulkSet(req.Slots); err != nil {
		writeError(w, err)
		return
	}
	s.orch.NotifyScheduleChanged(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"applied": len(req.Slots)})
}

func (s *Server) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	var t schedule.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeBadRequest(w, "malformed JSON body")
		return
	}
	if !validTarget(t) {
		writeBadRequest(w, "target kind must be \"instance\" or \"playlist\" and id must not be empty")
		return
	}
	if err := s.schedule.SetDefault(t); err != nil {
		writeError(w, err)
		return
	}
	s.orch.NotifyScheduleChanged(r.Context())
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleClearDefault(w http.ResponseWriter, r *http.Request) {
	if err := s.schedule.ClearDefault(); err != nil {
		writeError(w, err)
		return
	}
	s.orch.NotifyScheduleChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedule.ClearAll(); err != nil {
		writeError(w, err)
		return
	}
	s.orch.NotifyScheduleChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// slotKey parses the {day}/{hour} route params. Range errors are left to the
// store so the API and the store agree on what is valid.
func slotKey(w http.ResponseWriter, r *http.Request) (day, hour int, ok bool) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		writeBadRequest(w, "day must be an integer")
		return 0, 0, false
	}
	hour, err = strconv.Atoi(chi.URLParam(r, "hour"))
	if err != nil {
		writeBadRequest(w, "hour must be an integer")
		return 0, 0, false
	}
	return day, hour, true
}

func validTarget(t schedule.Target) bool {
	if t.ID == "" {
		return false
	}
	return t.Kind == schedule.TargetInstance || t.Kind == schedule.TargetPlaylist
}
