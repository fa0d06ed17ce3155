package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/store"
)

func (s *Server) handleItineraryJSON(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, err := s.deps.Exporter.JSON(r.Context(), id)
	if err != nil {
		s.exportError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleItineraryICS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cal, err := s.deps.Exporter.ICS(r.Context(), id)
	if err != nil {
		s.exportError(w, id, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="itinerary-`+id+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal))
}

func (s *Server) exportError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "itinerary not found")
		return
	}
	s.logger.Error("export itinerary", zap.String("itinerary_id", id), zap.Error(err))
	writeJSONError(w, http.StatusInternalServerError, "internal server error")
}
