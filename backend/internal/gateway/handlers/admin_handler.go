package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"school_grading/backend/internal/catalog"
	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

// CatalogHandler serves subjects and the school calendar
type CatalogHandler struct {
	Catalog *catalog.CatalogService
}

// -- Request Structs --

type RESTSetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// kinds maps the {kind} path segment to a period collection
var kinds = map[string]store.Kind{
	"years":     store.KindAcademicYear,
	"terms":     store.KindTerm,
	"sequences": store.KindSequence,
}

// CreateSubject handles POST /api/catalog/subjects
func (h *CatalogHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateSubjectRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	req.SchoolID = identity(r).SchoolID

	sub, err := h.Catalog.CreateSubject(r.Context(), req)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, sub)
}

// CreateYear handles POST /api/catalog/years
func (h *CatalogHandler) CreateYear(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateYearRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	req.SchoolID = identity(r).SchoolID

	detail, err := h.Catalog.CreateAcademicYear(r.Context(), req)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, detail)
}

// CreateTerm handles POST /api/catalog/terms
func (h *CatalogHandler) CreateTerm(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateTermRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	req.SchoolID = identity(r).SchoolID

	term, err := h.Catalog.CreateTerm(r.Context(), req)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, term)
}

// CreateSequence handles POST /api/catalog/sequences
func (h *CatalogHandler) CreateSequence(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateSequenceRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	req.SchoolID = identity(r).SchoolID

	seq, err := h.Catalog.CreateSequence(r.Context(), req)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, seq)
}

// Skeleton handles GET /api/catalog/years/{id}/skeleton
func (h *CatalogHandler) Skeleton(w http.ResponseWriter, r *http.Request) {
	skeleton, err := h.Catalog.Skeleton(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, skeleton)
}

// SetCurrent handles POST /api/catalog/{kind}/{id}/current
// kind is one of years, terms, sequences.
func (h *CatalogHandler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	kind, ok := kinds[chi.URLParam(r, "kind")]
	if !ok {
		util.HandleError(w, shared.Invalidf("unknown period kind %q", chi.URLParam(r, "kind")))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Catalog.SetCurrent(r.Context(), kind, id); err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "kind": string(kind)})
}

// SetSequenceActive handles PATCH /api/catalog/sequences/{id}/active
func (h *CatalogHandler) SetSequenceActive(w http.ResponseWriter, r *http.Request) {
	var req RESTSetActiveRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Catalog.SetSequenceActive(r.Context(), id, req.IsActive); err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"id": id, "is_active": req.IsActive})
}

// RefreshStatuses handles POST /api/catalog/refresh-status
// Recomputes term and sequence statuses of the caller's school.
func (h *CatalogHandler) RefreshStatuses(w http.ResponseWriter, r *http.Request) {
	res, err := h.Catalog.RefreshStatuses(r.Context(), identity(r).SchoolID, time.Now())
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}
