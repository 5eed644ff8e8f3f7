package http

import (
	"net/http"

	"expensetracker/internal/log"
)

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sum, err := s.deps.Summaries.Monthly(r.Context(), year, month)
	if err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Monthly summary failed",
			log.FieldYear, year, log.FieldMonth, month, log.FieldError, err.Error())
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sum, err := s.deps.Summaries.Yearly(r.Context(), year)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

// handleWeeklySummary reports an ISO week.
func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	week, err := queryInt(r, "week")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sum, err := s.deps.Summaries.Weekly(r.Context(), year, week)
	if err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Weekly summary failed",
			log.FieldYear, year, log.FieldWeek, week, log.FieldError, err.Error())
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}
