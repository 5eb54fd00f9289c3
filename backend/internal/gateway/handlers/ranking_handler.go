package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/queue"
	"school_grading/backend/internal/ranking"
	"school_grading/backend/internal/report"
)

// JobQueue accepts cohort ranking jobs for the rank-worker
type JobQueue interface {
	EnqueueRankJob(ctx context.Context, job queue.RankJob) (queue.RankJob, error)
}

// RankingHandler runs rankings synchronously, queues them or renders them
type RankingHandler struct {
	Engine   *ranking.Engine
	Jobs     JobQueue // nil when no queue is configured
	Reporter *report.Reporter
}

// -- Request Structs --

// RESTRankRequest selects the term, sequence and subject to rank. Scopes
// ignore the fields they do not need.
type RESTRankRequest struct {
	TermID     string `json:"term_id"`
	SequenceID string `json:"sequence_id"`
	SubjectID  string `json:"subject_id"`
}

// RESTPartialRanking reports ranks that were computed but not all saved
type RESTPartialRanking struct {
	Result interface{} `json:"result"`
	Error  string      `json:"error"`
}

func decodeRankRequest(r *http.Request) (RESTRankRequest, error) {
	var req RESTRankRequest
	if r.ContentLength == 0 {
		return req, nil
	}
	err := util.DecodeJSON(r, &req)
	return req, err
}

// respond writes a ranking result. When ranks were computed but some
// records failed to save, the ranks are returned with 207.
func respond(w http.ResponseWriter, result interface{}, computed bool, err error) {
	switch {
	case err == nil:
		util.WriteJSON(w, http.StatusOK, result)
	case computed && util.StatusOf(err) == http.StatusInternalServerError:
		util.WriteJSON(w, http.StatusMultiStatus, RESTPartialRanking{Result: result, Error: err.Error()})
	default:
		util.HandleError(w, err)
	}
}

// RankSubject handles POST /api/rankings/{classId}/{year}/subject
func (h *RankingHandler) RankSubject(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRankRequest(r)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	out, err := h.Engine.RankSubject(r.Context(), chi.URLParam(r, "classId"), chi.URLParam(r, "year"), req.TermID, req.SequenceID, req.SubjectID)
	respond(w, out, out != nil, err)
}

// RankSequence handles POST /api/rankings/{classId}/{year}/sequence
func (h *RankingHandler) RankSequence(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRankRequest(r)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	out, err := h.Engine.RankSequence(r.Context(), chi.URLParam(r, "classId"), chi.URLParam(r, "year"), req.TermID, req.SequenceID)
	respond(w, out, out != nil, err)
}

// RankTerm handles POST /api/rankings/{classId}/{year}/term
func (h *RankingHandler) RankTerm(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRankRequest(r)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	out, err := h.Engine.RankTerm(r.Context(), chi.URLParam(r, "classId"), chi.URLParam(r, "year"), req.TermID)
	respond(w, out, out != nil, err)
}

// RankOverall handles POST /api/rankings/{classId}/{year}/overall
func (h *RankingHandler) RankOverall(w http.ResponseWriter, r *http.Request) {
	out, err := h.Engine.RankYear(r.Context(), chi.URLParam(r, "classId"), chi.URLParam(r, "year"))
	respond(w, out, out != nil, err)
}

// RankAll handles POST /api/rankings/{classId}/{year}/all
func (h *RankingHandler) RankAll(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRankRequest(r)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	out, err := h.Engine.RankAll(r.Context(), chi.URLParam(r, "classId"), chi.URLParam(r, "year"), req.TermID, req.SequenceID, req.SubjectID)
	respond(w, out, out != nil, err)
}

// RankCohort handles POST /api/rankings/{classId}/{year}/cohort
func (h *RankingHandler) RankCohort(w http.ResponseWriter, r *http.Request) {
	out, err := h.Engine.RankCohort(r.Context(), chi.URLParam(r, "classId"), chi.URLParam(r, "year"))
	respond(w, out, out != nil, err)
}

// EnqueueCohort handles POST /api/rankings/{classId}/{year}/jobs
// Queues a cohort ranking for the rank-worker and answers 202.
func (h *RankingHandler) EnqueueCohort(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		util.WriteJSONError(w, http.StatusServiceUnavailable, "Ranking queue is not configured")
		return
	}

	job, err := h.Jobs.EnqueueRankJob(r.Context(), queue.RankJob{
		ClassID:     chi.URLParam(r, "classId"),
		Year:        chi.URLParam(r, "year"),
		RequestedBy: identity(r).UserID,
	})
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusAccepted, job)
}

// Report handles GET /api/rankings/{classId}/{year}/report.xlsx
func (h *RankingHandler) Report(w http.ResponseWriter, r *http.Request) {
	classID, year := chi.URLParam(r, "classId"), chi.URLParam(r, "year")

	data, err := h.Reporter.CohortWorkbook(r.Context(), classID, year)
	if err != nil {
		util.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("ranking-%s-%s.xlsx", classID, year)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Str("class_id", classID).Msg("failed to write report")
	}
}
