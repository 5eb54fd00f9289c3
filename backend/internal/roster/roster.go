// Package roster manages classes: their subject/coefficient table and the
// list of academic year records enrolled in them.
package roster

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

// Roster is a class together with the catalog subjects its table references.
// It is the weighting every average calculation of the class uses.
type Roster struct {
	Class    *shared.Class
	subjects map[string]*shared.Subject
}

// New builds a Roster from a class and the subjects it references
func New(class *shared.Class, subjects []*shared.Subject) *Roster {
	r := &Roster{Class: class, subjects: make(map[string]*shared.Subject, len(subjects))}
	for _, s := range subjects {
		r.subjects[s.ID] = s
	}
	return r
}

// Load reads a class and its catalog subjects
func Load(ctx context.Context, st store.Store, classID string) (*Roster, error) {
	class, err := st.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(class.Subjects))
	for _, s := range class.Subjects {
		ids = append(ids, s.SubjectID)
	}
	subjects, err := st.ListSubjects(ctx, ids)
	if err != nil {
		return nil, err
	}
	return New(class, subjects), nil
}

// Coefficient returns the class coefficient for subjectID
func (r *Roster) Coefficient(subjectID string) (float64, bool) {
	entry, ok := r.Class.SubjectEntry(subjectID)
	if !ok {
		return 0, false
	}
	return entry.Coefficient, true
}

// IsSubjectActive reports whether subjectID is active in the catalog and
// still on the class table. Marks of removed subjects stay on the records
// but are not averaged.
func (r *Roster) IsSubjectActive(subjectID string) bool {
	if _, ok := r.Class.SubjectEntry(subjectID); !ok {
		return false
	}
	s, ok := r.subjects[subjectID]
	return ok && s.IsActive
}

// Subject returns the catalog subject or nil
func (r *Roster) Subject(subjectID string) *shared.Subject {
	return r.subjects[subjectID]
}

// ============================================================================
// Service
// ============================================================================

// Service handles class creation and subject table maintenance
type Service struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewService creates a new roster Service
func NewService(st store.Store) *Service {
	return &Service{store: st, log: shared.Logger("roster"), now: time.Now}
}

// CreateClassRequest describes a new class
type CreateClassRequest struct {
	SchoolID     string                `json:"school_id" validate:"required"`
	Name         string                `json:"name" validate:"required"`
	Level        string                `json:"level" validate:"required"`
	Capacity     int32                 `json:"capacity" validate:"gte=0"`
	FeeAmount    float64               `json:"fee_amount" validate:"gte=0"`
	AcademicYear string                `json:"academic_year" validate:"required,yearname"`
	Subjects     []shared.ClassSubject `json:"subjects" validate:"dive"`
}

// CreateClass validates and stores a class. Every subject in the table must
// exist in the catalog.
func (s *Service) CreateClass(ctx context.Context, req CreateClassRequest) (*shared.Class, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, sub := range req.Subjects {
		if seen[sub.SubjectID] {
			return nil, shared.Invalidf("subject %s listed twice", sub.SubjectID)
		}
		seen[sub.SubjectID] = true
		if _, err := s.store.GetSubject(ctx, sub.SubjectID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	class := &shared.Class{
		ID:           shared.GenerateID("CLS"),
		SchoolID:     req.SchoolID,
		Name:         req.Name,
		Level:        req.Level,
		Capacity:     req.Capacity,
		FeeAmount:    req.FeeAmount,
		Status:       shared.ClassStatusOpen,
		AcademicYear: req.AcademicYear,
		Subjects:     append([]shared.ClassSubject{}, req.Subjects...),
		StudentList:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.InsertClass(ctx, class); err != nil {
		return nil, err
	}

	s.log.Info().Str("class_id", class.ID).Str("name", class.Name).Int("subjects", len(class.Subjects)).Msg("class created")
	return class, nil
}

// GetRoster loads a class with its subjects
func (s *Service) GetRoster(ctx context.Context, classID string) (*Roster, error) {
	return Load(ctx, s.store, classID)
}

// SetSubject adds subjectID to the class table or replaces its line
func (s *Service) SetSubject(ctx context.Context, classID string, entry shared.ClassSubject) (*shared.Class, error) {
	if err := shared.ValidateStruct(entry); err != nil {
		return nil, err
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetSubject(ctx, entry.SubjectID); err != nil {
		return nil, err
	}

	replaced := false
	for i := range class.Subjects {
		if class.Subjects[i].SubjectID == entry.SubjectID {
			class.Subjects[i] = entry
			replaced = true
		}
	}
	if !replaced {
		class.Subjects = append(class.Subjects, entry)
	}

	if err := s.store.UpdateClassSubjects(ctx, classID, class.Subjects); err != nil {
		return nil, err
	}

	s.log.Info().Str("class_id", classID).Str("subject_id", entry.SubjectID).Float64("coefficient", entry.Coefficient).Msg("class subject set")
	return class, nil
}

// RemoveSubject drops subjectID from the class table
func (s *Service) RemoveSubject(ctx context.Context, classID, subjectID string) (*shared.Class, error) {
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	kept := class.Subjects[:0]
	for _, sub := range class.Subjects {
		if sub.SubjectID != subjectID {
			kept = append(kept, sub)
		}
	}
	if len(kept) == len(class.Subjects) {
		return nil, shared.NotFoundf("subject %s in class %s", subjectID, classID)
	}
	class.Subjects = kept

	if err := s.store.UpdateClassSubjects(ctx, classID, class.Subjects); err != nil {
		return nil, err
	}
	return class, nil
}
