package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/grade"
	"school_grading/backend/internal/student"
)

// StudentHandler serves the student directory
type StudentHandler struct {
	Students *student.StudentService
	Grades   *grade.GradeService
}

// Register handles POST /api/students
func (h *StudentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req student.RegisterRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	req.SchoolID = identity(r).SchoolID

	s, err := h.Students.Register(r.Context(), req)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, s)
}

// Get handles GET /api/students/{id}
func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Students.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, s)
}

// ListYears handles GET /api/students/{id}/years
func (h *StudentHandler) ListYears(w http.ResponseWriter, r *http.Request) {
	records, err := h.Grades.ListStudentYears(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, records)
}
