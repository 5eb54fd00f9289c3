package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/grade"
	"school_grading/backend/internal/shared"
)

// GradeHandler serves academic year records: marks, averages and fees
type GradeHandler struct {
	Grades *grade.GradeService
}

// -- Request Structs --

type RESTCreateYearRequest struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	Year      string `json:"year"`
}

type RESTMarkRequest struct {
	TermID     string   `json:"term_id"`
	SequenceID string   `json:"sequence_id"`
	SubjectID  string   `json:"subject_id"`
	Mark       *float64 `json:"mark"`
}

// CreateYear handles POST /api/years
// Creates a record seeded with the calendar of the caller's school.
func (h *GradeHandler) CreateYear(w http.ResponseWriter, r *http.Request) {
	var body RESTCreateYearRequest
	if err := util.DecodeJSON(r, &body); err != nil {
		util.HandleError(w, err)
		return
	}

	rec, err := h.Grades.CreateAcademicYear(r.Context(), grade.CreateYearRequest{
		StudentID: body.StudentID,
		ClassID:   body.ClassID,
		SchoolID:  identity(r).SchoolID,
		Year:      body.Year,
	})
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, rec)
}

// GetYear handles GET /api/years/{id}
func (h *GradeHandler) GetYear(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Grades.GetAcademicYear(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rec)
}

// DeleteYear handles DELETE /api/years/{id}
func (h *GradeHandler) DeleteYear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Grades.DeleteAcademicYear(r.Context(), id); err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

// UpdateMark handles PUT /api/years/{id}/marks
// subject_id "absences" sets the sequence absence count. The modifier is the
// caller identity.
func (h *GradeHandler) UpdateMark(w http.ResponseWriter, r *http.Request) {
	var body RESTMarkRequest
	if err := util.DecodeJSON(r, &body); err != nil {
		util.HandleError(w, err)
		return
	}

	id := identity(r)
	rec, err := h.Grades.UpdateMark(r.Context(), chi.URLParam(r, "id"), academic.MarkUpdate{
		TermID:     body.TermID,
		SequenceID: body.SequenceID,
		SubjectID:  body.SubjectID,
		Mark:       body.Mark,
		ModifiedBy: academic.Modifier{UserID: id.UserID, Name: id.Name},
	})
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rec)
}

// Recalculate handles POST /api/years/{id}/recalculate
func (h *GradeHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Grades.RecalculateAverages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rec)
}

// CheckCompletion handles POST /api/years/{id}/completion
func (h *GradeHandler) CheckCompletion(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Grades.CheckYearCompletion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rec)
}

// AtRisk handles GET /api/years/at-risk
// Query Params: year (required), threshold (optional, defaults to the pass mark)
func (h *GradeHandler) AtRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threshold := 0.0
	if raw := q.Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			util.HandleError(w, shared.Invalidf("threshold must be a number, got %q", raw))
			return
		}
		threshold = v
	}

	records, err := h.Grades.FindStudentsAtRisk(r.Context(), identity(r).SchoolID, q.Get("year"), threshold)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, records)
}

// AddFee handles POST /api/years/{id}/fees
func (h *GradeHandler) AddFee(w http.ResponseWriter, r *http.Request) {
	var fee academic.Fee
	if err := util.DecodeJSON(r, &fee); err != nil {
		util.HandleError(w, err)
		return
	}

	rec, err := h.Grades.AddFee(r.Context(), chi.URLParam(r, "id"), fee)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, rec)
}

// UpdateFee handles PATCH /api/years/{id}/fees/{billId}
func (h *GradeHandler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	var patch academic.FeePatch
	if err := util.DecodeJSON(r, &patch); err != nil {
		util.HandleError(w, err)
		return
	}

	rec, err := h.Grades.UpdateFee(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "billId"), patch)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rec)
}

// DeleteFee handles DELETE /api/years/{id}/fees/{billId}
func (h *GradeHandler) DeleteFee(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Grades.DeleteFee(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "billId"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rec)
}
