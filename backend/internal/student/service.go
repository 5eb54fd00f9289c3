// Package student is the student directory: identity, level, current class
// and the list of academic year records a student owns.
package student

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

// StudentService manages student documents
type StudentService struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewStudentService creates a new StudentService instance
func NewStudentService(st store.Store) *StudentService {
	return &StudentService{store: st, log: shared.Logger("student"), now: time.Now}
}

// RegisterRequest describes a new student
type RegisterRequest struct {
	SchoolID    string    `json:"school_id" validate:"required"`
	Matricule   string    `json:"matricule" validate:"required"`
	FirstName   string    `json:"first_name" validate:"required"`
	LastName    string    `json:"last_name" validate:"required"`
	Gender      string    `json:"gender,omitempty" validate:"omitempty,oneof=M F"`
	DateOfBirth time.Time `json:"date_of_birth,omitempty"`
	Level       string    `json:"level" validate:"required"`
}

// Register creates a student with no class and no records
func (s *StudentService) Register(ctx context.Context, req RegisterRequest) (*shared.Student, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	st := &shared.Student{
		ID:            shared.GenerateID("STU"),
		SchoolID:      req.SchoolID,
		Matricule:     req.Matricule,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Gender:        req.Gender,
		DateOfBirth:   req.DateOfBirth,
		Level:         req.Level,
		AcademicYears: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertStudent(ctx, st); err != nil {
		return nil, err
	}

	s.log.Info().Str("student_id", st.ID).Str("matricule", st.Matricule).Msg("student registered")
	return st, nil
}

// Get returns a student by id
func (s *StudentService) Get(ctx context.Context, id string) (*shared.Student, error) {
	return s.store.GetStudent(ctx, id)
}

// SetClass records the student's current class
func (s *StudentService) SetClass(ctx context.Context, studentID, classID string) error {
	return s.store.SetStudentClass(ctx, studentID, classID)
}

// AddYear links a record to the student; adding twice is a no-op
func (s *StudentService) AddYear(ctx context.Context, studentID, recordID string) error {
	return s.store.AddStudentYear(ctx, studentID, recordID)
}

// RemoveYear unlinks a record from the student
func (s *StudentService) RemoveYear(ctx context.Context, studentID, recordID string) error {
	return s.store.RemoveStudentYear(ctx, studentID, recordID)
}
