package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"school_grading/backend/internal/assignment"
	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/roster"
	"school_grading/backend/internal/shared"
)

// ClassHandler serves classes, their subject tables and student assignment
type ClassHandler struct {
	Classes     *roster.Service
	Assignments *assignment.AssignmentService
}

// -- Request Structs --

type RESTClassSubjectRequest struct {
	Coefficient float64 `json:"coefficient"`
	TeacherID   string  `json:"teacher_id,omitempty"`
}

type RESTAssignRequest struct {
	Year       string   `json:"year"`
	StudentIDs []string `json:"student_ids"`
}

// RESTRosterResponse is a class with the catalog subjects of its table
type RESTRosterResponse struct {
	Class    *shared.Class     `json:"class"`
	Subjects []*shared.Subject `json:"subjects"`
}

// CreateClass handles POST /api/classes
func (h *ClassHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req roster.CreateClassRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	req.SchoolID = identity(r).SchoolID

	class, err := h.Classes.CreateClass(r.Context(), req)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, class)
}

// GetClass handles GET /api/classes/{id}
func (h *ClassHandler) GetClass(w http.ResponseWriter, r *http.Request) {
	ro, err := h.Classes.GetRoster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleError(w, err)
		return
	}

	resp := RESTRosterResponse{Class: ro.Class, Subjects: []*shared.Subject{}}
	for _, entry := range ro.Class.Subjects {
		if sub := ro.Subject(entry.SubjectID); sub != nil {
			resp.Subjects = append(resp.Subjects, sub)
		}
	}
	util.WriteJSON(w, http.StatusOK, resp)
}

// SetSubject handles PUT /api/classes/{id}/subjects/{subjectId}
func (h *ClassHandler) SetSubject(w http.ResponseWriter, r *http.Request) {
	var req RESTClassSubjectRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}

	class, err := h.Classes.SetSubject(r.Context(), chi.URLParam(r, "id"), shared.ClassSubject{
		SubjectID:   chi.URLParam(r, "subjectId"),
		Coefficient: req.Coefficient,
		TeacherID:   req.TeacherID,
	})
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, class)
}

// RemoveSubject handles DELETE /api/classes/{id}/subjects/{subjectId}
func (h *ClassHandler) RemoveSubject(w http.ResponseWriter, r *http.Request) {
	class, err := h.Classes.RemoveSubject(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "subjectId"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, class)
}

// AssignStudents handles POST /api/classes/{id}/assign
// Query Params: tx (optional, "true" runs the batch in one transaction)
// Responds 207 when some students could not be assigned.
func (h *ClassHandler) AssignStudents(w http.ResponseWriter, r *http.Request) {
	var body RESTAssignRequest
	if err := util.DecodeJSON(r, &body); err != nil {
		util.HandleError(w, err)
		return
	}

	useTx := false
	if raw := r.URL.Query().Get("tx"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			util.HandleError(w, shared.Invalidf("tx must be a boolean, got %q", raw))
			return
		}
		useTx = v
	}

	req := assignment.AssignRequest{ClassID: chi.URLParam(r, "id"), Year: body.Year, StudentIDs: body.StudentIDs}

	var res *assignment.Result
	var err error
	if useTx {
		res, err = h.Assignments.AssignStudentsTx(r.Context(), req)
	} else {
		res, err = h.Assignments.AssignStudents(r.Context(), req)
	}
	if err != nil {
		util.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if res.FailedCount > 0 {
		status = http.StatusMultiStatus
	}
	util.WriteJSON(w, status, res)
}
