// ============================================================================
// backend/internal/grade/service.go
// Academic year record use cases: marks, averages, completion, fees
// ============================================================================

package grade

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/catalog"
	"school_grading/backend/internal/metrics"
	"school_grading/backend/internal/roster"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

// DefaultAtRiskThreshold is the term average below which a record is at risk
const DefaultAtRiskThreshold = shared.PassMark

// GradeService runs the academic year record use cases. Each call loads the
// record, mutates it in memory and saves it back whole.
type GradeService struct {
	store   store.Store
	catalog *catalog.CatalogService
	log     zerolog.Logger
	now     func() time.Time
}

// NewGradeService creates a new GradeService instance
func NewGradeService(st store.Store, cat *catalog.CatalogService) *GradeService {
	return &GradeService{store: st, catalog: cat, log: shared.Logger("grade"), now: time.Now}
}

// CreateYearRequest asks for a record seeded from the catalog calendar
type CreateYearRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
	SchoolID  string `json:"school_id" validate:"required"`
	Year      string `json:"year" validate:"required,yearname"`
}

// ============================================================================
// Record lifecycle
// ============================================================================

// CreateAcademicYear creates a record whose term, sequence and subject slots
// are copied from the year's calendar and the class subject table. The slots
// start ungraded.
func (s *GradeService) CreateAcademicYear(ctx context.Context, req CreateYearRequest) (*academic.AcademicYear, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}

	student, err := s.store.GetStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	r, err := roster.Load(ctx, s.store, req.ClassID)
	if err != nil {
		return nil, err
	}
	detail, err := s.store.FindYearDetail(ctx, req.SchoolID, req.Year)
	if err != nil {
		return nil, err
	}
	skeleton, err := s.catalog.Skeleton(ctx, detail.ID)
	if err != nil {
		return nil, err
	}

	rec := academic.New(student.ID, req.SchoolID, req.Year, r.Class.ID, s.now())
	for _, t := range skeleton {
		if len(t.Sequences) == 0 {
			rec.SeedSlot(t.Term.ID, "", "")
		}
		for _, seq := range t.Sequences {
			if len(r.Class.Subjects) == 0 {
				rec.SeedSlot(t.Term.ID, seq.ID, "")
			}
			for _, sub := range r.Class.Subjects {
				rec.SeedSlot(t.Term.ID, seq.ID, sub.SubjectID)
			}
		}
	}
	if err := rec.CalculateAverages(r); err != nil {
		return nil, err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertYear(ctx, rec); err != nil {
			return err
		}
		if err := s.store.AddStudentYear(ctx, student.ID, rec.ID); err != nil {
			return err
		}
		return s.store.AddToRoster(ctx, r.Class.ID, rec.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("record_id", rec.ID).Str("student_id", student.ID).Str("year", rec.Year).Int("terms", len(rec.Terms)).Msg("academic year record created")
	return rec, nil
}

// GetAcademicYear returns a record by id
func (s *GradeService) GetAcademicYear(ctx context.Context, id string) (*academic.AcademicYear, error) {
	return s.store.GetYear(ctx, id)
}

// ListStudentYears returns every record of a student
func (s *GradeService) ListStudentYears(ctx context.Context, studentID string) ([]*academic.AcademicYear, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return s.store.ListStudentYears(ctx, studentID)
}

// DeleteAcademicYear removes a record and pulls its id from the owning
// student and from the class roster.
func (s *GradeService) DeleteAcademicYear(ctx context.Context, id string) error {
	rec, err := s.store.GetYear(ctx, id)
	if err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.DeleteYear(ctx, id); err != nil {
			return err
		}
		if err := ignoreNotFound(s.store.RemoveStudentYear(ctx, rec.StudentID, id)); err != nil {
			return err
		}
		return ignoreNotFound(s.store.RemoveFromRoster(ctx, rec.ClassID, id))
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("record_id", id).Str("student_id", rec.StudentID).Msg("academic year record deleted")
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	return err
}

// ============================================================================
// Marks and averages
// ============================================================================

// UpdateMark resolves the term and sequence, applies the mark with the
// class's coefficients and saves the record.
func (s *GradeService) UpdateMark(ctx context.Context, recordID string, upd academic.MarkUpdate) (rec *academic.AcademicYear, err error) {
	kind := "subject"
	if upd.SubjectID == shared.AbsencesSentinel {
		kind = "absences"
	}
	defer func() { metrics.MarkUpdates.WithLabelValues(kind, metrics.Result(err)).Inc() }()

	if err := shared.ValidateStruct(upd); err != nil {
		return nil, err
	}

	rec, err = s.store.GetYear(ctx, recordID)
	if err != nil {
		return nil, err
	}
	term, err := s.store.GetTerm(ctx, upd.TermID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTermOwnership(ctx, rec, term); err != nil {
		return nil, err
	}
	seq, err := s.store.GetSequence(ctx, upd.SequenceID)
	if err != nil {
		return nil, err
	}
	r, err := roster.Load(ctx, s.store, rec.ClassID)
	if err != nil {
		return nil, err
	}

	if err := rec.UpdateMark(term, seq, upd, r, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.SaveYear(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("record_id", recordID).
		Str("sequence_id", seq.ID).
		Str("subject_id", upd.SubjectID).
		Float64("mark", *upd.Mark).
		Str("modified_by", upd.ModifiedBy.UserID).
		Msg("mark updated")
	return rec, nil
}

// checkTermOwnership rejects a term from another school or another year than
// the record's
func (s *GradeService) checkTermOwnership(ctx context.Context, rec *academic.AcademicYear, term *shared.Term) error {
	if term.SchoolID != rec.SchoolID {
		return shared.Preconditionf("term %s belongs to another school", term.ID)
	}
	detail, err := s.store.GetYearDetail(ctx, term.AcademicYearID)
	if err != nil {
		return err
	}
	if detail.Name != rec.Year {
		return shared.Preconditionf("term %s is not part of academic year %s", term.ID, rec.Year)
	}
	return nil
}

// RecalculateAverages recomputes a record against the current class table
func (s *GradeService) RecalculateAverages(ctx context.Context, recordID string) (*academic.AcademicYear, error) {
	return s.mutate(ctx, recordID, func(rec *academic.AcademicYear) error {
		r, err := roster.Load(ctx, s.store, rec.ClassID)
		if err != nil {
			return err
		}
		return rec.CalculateAverages(r)
	})
}

// CheckYearCompletion evaluates and persists HasCompleted
func (s *GradeService) CheckYearCompletion(ctx context.Context, recordID string) (*academic.AcademicYear, error) {
	return s.mutate(ctx, recordID, func(rec *academic.AcademicYear) error {
		rec.CheckYearCompletion()
		return nil
	})
}

// FindStudentsAtRisk returns the records of schoolID for year that have a
// term average below threshold or a failing subject. threshold <= 0 uses
// DefaultAtRiskThreshold.
func (s *GradeService) FindStudentsAtRisk(ctx context.Context, schoolID, year string, threshold float64) ([]*academic.AcademicYear, error) {
	if !shared.ValidYearName(year) {
		return nil, shared.Invalidf("year %q must be formatted YYYY-YYYY", year)
	}
	if threshold <= 0 {
		threshold = DefaultAtRiskThreshold
	}

	records, err := s.store.ListSchoolYear(ctx, schoolID, year)
	if err != nil {
		return nil, err
	}

	atRisk := []*academic.AcademicYear{}
	for _, rec := range records {
		if rec.AtRisk(threshold) {
			atRisk = append(atRisk, rec)
		}
	}
	return atRisk, nil
}

// ============================================================================
// Fees
// ============================================================================

// AddFee appends a fee to a record
func (s *GradeService) AddFee(ctx context.Context, recordID string, fee academic.Fee) (*academic.AcademicYear, error) {
	return s.mutate(ctx, recordID, func(rec *academic.AcademicYear) error {
		return rec.AddFee(fee, s.now())
	})
}

// UpdateFee patches a fee on a record
func (s *GradeService) UpdateFee(ctx context.Context, recordID, billID string, patch academic.FeePatch) (*academic.AcademicYear, error) {
	return s.mutate(ctx, recordID, func(rec *academic.AcademicYear) error {
		return rec.UpdateFee(billID, patch, s.now())
	})
}

// DeleteFee removes a fee from a record
func (s *GradeService) DeleteFee(ctx context.Context, recordID, billID string) (*academic.AcademicYear, error) {
	return s.mutate(ctx, recordID, func(rec *academic.AcademicYear) error {
		return rec.DeleteFee(billID, s.now())
	})
}

// mutate is load, apply, save
func (s *GradeService) mutate(ctx context.Context, recordID string, fn func(rec *academic.AcademicYear) error) (*academic.AcademicYear, error) {
	rec, err := s.store.GetYear(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := s.store.SaveYear(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
