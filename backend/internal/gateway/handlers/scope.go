package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/grade"
	"school_grading/backend/internal/roster"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/student"
)

// ============================================================================
// School scoping
// ============================================================================

// ownerFunc returns the school a document belongs to
type ownerFunc func(ctx context.Context, id string) (string, error)

// RecordScope hides academic year records of other schools behind a 404
func RecordScope(grades *grade.GradeService, param string) func(http.Handler) http.Handler {
	return scope(param, "academic year record", func(ctx context.Context, id string) (string, error) {
		rec, err := grades.GetAcademicYear(ctx, id)
		if err != nil {
			return "", err
		}
		return rec.SchoolID, nil
	})
}

// ClassScope hides classes of other schools, and their rankings, behind a 404
func ClassScope(classes *roster.Service, param string) func(http.Handler) http.Handler {
	return scope(param, "class", func(ctx context.Context, id string) (string, error) {
		ro, err := classes.GetRoster(ctx, id)
		if err != nil {
			return "", err
		}
		return ro.Class.SchoolID, nil
	})
}

// StudentScope hides students of other schools behind a 404
func StudentScope(students *student.StudentService, param string) func(http.Handler) http.Handler {
	return scope(param, "student", func(ctx context.Context, id string) (string, error) {
		s, err := students.Get(ctx, id)
		if err != nil {
			return "", err
		}
		return s.SchoolID, nil
	})
}

func scope(param, kind string, owner ownerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, param)
			school, err := owner(r.Context(), id)
			if err != nil {
				util.HandleError(w, err)
				return
			}
			if school != identity(r).SchoolID {
				util.HandleError(w, shared.NotFoundf("%s %s", kind, id))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
