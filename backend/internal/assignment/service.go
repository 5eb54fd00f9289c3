// ============================================================================
// backend/internal/assignment/service.go
// Bulk assignment of students to a class for an academic year
// ============================================================================

package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/metrics"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

// AssignRequest names the students to place in a class for a year
type AssignRequest struct {
	ClassID    string   `json:"class_id" validate:"required"`
	Year       string   `json:"year" validate:"required,yearname"`
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// Failure is one student the batch could not assign
type Failure struct {
	StudentID string `json:"student_id"`
	Error     string `json:"error"`
}

// Result is the partial-success report of a batch
type Result struct {
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Failed      []Failure `json:"failed"`
	FailedCount int       `json:"failed_count"`
}

func (r *Result) fail(studentID string, err error) {
	r.Failed = append(r.Failed, Failure{StudentID: studentID, Error: shared.Message(err)})
	r.FailedCount = len(r.Failed)
}

// AssignmentService attaches students to classes, creating or moving their
// academic year records.
type AssignmentService struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewAssignmentService creates a new AssignmentService instance
func NewAssignmentService(st store.Store) *AssignmentService {
	return &AssignmentService{store: st, log: shared.Logger("assignment"), now: time.Now}
}

// batch is the state shared by both variants once the class and year checks
// have passed.
type batch struct {
	class *shared.Class
	year  string
	seats int // remaining capacity; negative means unlimited
	// strict adds the current-year and student level checks
	strict bool
}

func (b *batch) clone() *batch {
	class := *b.class
	class.StudentList = append([]string{}, b.class.StudentList...)
	return &batch{class: &class, year: b.year, seats: b.seats, strict: b.strict}
}

// prepare validates the request and the class. A strict batch also requires
// the targeted year to exist and be the school's current year.
func (s *AssignmentService) prepare(ctx context.Context, req AssignRequest, strict bool) (*batch, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}

	class, err := s.store.GetClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	if !class.IsOpen() {
		return nil, shared.Preconditionf("class %s is closed", class.Name)
	}

	if strict {
		detail, err := s.store.FindYearDetail(ctx, class.SchoolID, req.Year)
		if err != nil {
			return nil, err
		}
		if !detail.IsCurrent {
			return nil, shared.Preconditionf("academic year %s is not the current year", req.Year)
		}
	}

	seats := -1
	if class.Capacity > 0 {
		seats = int(class.Capacity) - len(class.StudentList)
	}
	return &batch{class: class, year: req.Year, seats: seats, strict: strict}, nil
}

// AssignStudents assigns each student independently. Every per-student
// problem, including store errors and level mismatches, becomes a Failure;
// only request, class and year problems fail the call.
func (s *AssignmentService) AssignStudents(ctx context.Context, req AssignRequest) (*Result, error) {
	b, err := s.prepare(ctx, req, true)
	if err != nil {
		return nil, err
	}

	res := &Result{Failed: []Failure{}}
	for _, id := range unique(req.StudentIDs) {
		created, err := s.assignOne(ctx, b, id)
		s.tally(res, "plain", id, created, err)
	}

	s.log.Info().
		Str("class_id", b.class.ID).
		Str("year", b.year).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("failed", res.FailedCount).
		Msg("students assigned")
	return res, nil
}

// AssignStudentsTx runs the batch in one transaction. It aborts only on a
// malformed request, a missing or closed class, or a store error, which rolls
// back the whole batch. The year is not checked against the calendar and
// student levels are not compared. Unknown students, students of another
// school and a full class are still reported as failures.
func (s *AssignmentService) AssignStudentsTx(ctx context.Context, req AssignRequest) (*Result, error) {
	b, err := s.prepare(ctx, req, false)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		// fn may be retried; start each attempt from the prepared state
		res = &Result{Failed: []Failure{}}
		attempt := b.clone()

		for _, id := range unique(req.StudentIDs) {
			created, err := s.assignOne(ctx, attempt, id)
			if err != nil && !soft(err) {
				return errors.Wrapf(err, "assign student %s", id)
			}
			s.tally(res, "tx", id, created, err)
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("class_id", b.class.ID).Msg("transactional assignment aborted")
		return nil, err
	}

	s.log.Info().
		Str("class_id", b.class.ID).
		Str("year", b.year).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("failed", res.FailedCount).
		Msg("students assigned in transaction")
	return res, nil
}

func (s *AssignmentService) tally(res *Result, mode, studentID string, created bool, err error) {
	switch {
	case err != nil:
		res.fail(studentID, err)
		metrics.Assignments.WithLabelValues(mode, "failed").Inc()
	case created:
		res.Created++
		metrics.Assignments.WithLabelValues(mode, "created").Inc()
	default:
		res.Updated++
		metrics.Assignments.WithLabelValues(mode, "updated").Inc()
	}
}

// soft reports per-student problems that never abort a batch
func soft(err error) bool {
	return errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrPrecondition)
}

// assignOne finds or creates the student's record for the year, points it
// at the class and links it from the student and the class roster. It
// reports whether a record was created.
func (s *AssignmentService) assignOne(ctx context.Context, b *batch, studentID string) (bool, error) {
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return false, err
	}
	if student.SchoolID != b.class.SchoolID {
		return false, shared.NotFoundf("student %s", studentID)
	}
	if b.strict && student.Level != b.class.Level {
		return false, shared.Preconditionf("student level %s does not match class level %s", student.Level, b.class.Level)
	}

	created := false
	rec, err := s.store.FindYear(ctx, student.ID, b.year, b.class.SchoolID)
	switch {
	case err == nil:
		if !b.class.HasRecord(rec.ID) && b.seats == 0 {
			return false, shared.Preconditionf("class %s is full", b.class.Name)
		}
		if rec.ClassID != b.class.ID {
			if err := s.store.SetYearClass(ctx, rec.ID, b.class.ID); err != nil {
				return false, err
			}
			// the record leaves its previous class
			err := s.store.RemoveFromRoster(ctx, rec.ClassID, rec.ID)
			if err != nil && !errors.Is(err, shared.ErrNotFound) {
				return false, err
			}
		}
	case errors.Is(err, shared.ErrNotFound):
		if b.seats == 0 {
			return false, shared.Preconditionf("class %s is full", b.class.Name)
		}
		rec = academic.New(student.ID, b.class.SchoolID, b.year, b.class.ID, s.now())
		if err := s.store.InsertYear(ctx, rec); err != nil {
			return false, err
		}
		created = true
	default:
		return false, err
	}

	if err := s.store.SetStudentClass(ctx, student.ID, b.class.ID); err != nil {
		return false, err
	}
	if err := s.store.AddStudentYear(ctx, student.ID, rec.ID); err != nil {
		return false, err
	}
	if err := s.store.AddToRoster(ctx, b.class.ID, rec.ID); err != nil {
		return false, err
	}

	if !b.class.HasRecord(rec.ID) {
		b.class.StudentList = append(b.class.StudentList, rec.ID)
		if b.seats > 0 {
			b.seats--
		}
	}
	return created, nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
