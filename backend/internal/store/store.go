// ============================================================================
// backend/internal/store/store.go
// Persistence contracts for students, classes, catalog and year records
// ============================================================================

// Package store defines the persistence contracts used by the grading
// services, with a MongoDB implementation and an in-memory one for tests.
//
// Every getter returns a copy; mutating it has no effect until it is saved.
// Missing documents are reported as shared.ErrNotFound.
package store

import (
	"context"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/shared"
)

// Kind names a catalog period collection that carries an IsCurrent flag
type Kind string

const (
	KindAcademicYear Kind = "academic_year_details"
	KindTerm         Kind = "terms"
	KindSequence     Kind = "sequences"
)

// Valid reports whether k is a known period kind
func (k Kind) Valid() bool {
	switch k {
	case KindAcademicYear, KindTerm, KindSequence:
		return true
	}
	return false
}

// Transactor runs fn as one atomic unit. Store calls made with the ctx passed
// to fn participate in the transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Students is the student directory
type Students interface {
	InsertStudent(ctx context.Context, s *shared.Student) error
	GetStudent(ctx context.Context, id string) (*shared.Student, error)
	SetStudentClass(ctx context.Context, studentID, classID string) error
	AddStudentYear(ctx context.Context, studentID, recordID string) error
	RemoveStudentYear(ctx context.Context, studentID, recordID string) error
}

// Classes holds classes, their subject tables and rosters
type Classes interface {
	InsertClass(ctx context.Context, c *shared.Class) error
	GetClass(ctx context.Context, id string) (*shared.Class, error)
	UpdateClassSubjects(ctx context.Context, classID string, subjects []shared.ClassSubject) error
	AddToRoster(ctx context.Context, classID, recordID string) error
	RemoveFromRoster(ctx context.Context, classID, recordID string) error
}

// Catalog holds subjects and the year/term/sequence calendar
type Catalog interface {
	InsertSubject(ctx context.Context, s *shared.Subject) error
	GetSubject(ctx context.Context, id string) (*shared.Subject, error)
	ListSubjects(ctx context.Context, ids []string) ([]*shared.Subject, error)

	InsertYearDetail(ctx context.Context, d *shared.AcademicYearDetail) error
	GetYearDetail(ctx context.Context, id string) (*shared.AcademicYearDetail, error)
	FindYearDetail(ctx context.Context, schoolID, name string) (*shared.AcademicYearDetail, error)

	InsertTerm(ctx context.Context, t *shared.Term) error
	GetTerm(ctx context.Context, id string) (*shared.Term, error)
	ListTerms(ctx context.Context, academicYearID string) ([]*shared.Term, error)
	// ListSchoolTerms lists every term of schoolID, or of all schools when empty
	ListSchoolTerms(ctx context.Context, schoolID string) ([]*shared.Term, error)

	InsertSequence(ctx context.Context, s *shared.Sequence) error
	GetSequence(ctx context.Context, id string) (*shared.Sequence, error)
	ListSequences(ctx context.Context, termID string) ([]*shared.Sequence, error)
	ListSchoolSequences(ctx context.Context, schoolID string) ([]*shared.Sequence, error)

	ClearCurrent(ctx context.Context, kind Kind, schoolID string) error
	MarkCurrent(ctx context.Context, kind Kind, id string) error
	SetStatus(ctx context.Context, kind Kind, id, status string) error
	SetSequenceActive(ctx context.Context, id string, active bool) error
}

// AcademicYears holds the per-student grading records
type AcademicYears interface {
	// InsertYear fails with shared.ErrConflict when (student, year, school)
	// already has a record.
	InsertYear(ctx context.Context, y *academic.AcademicYear) error
	GetYear(ctx context.Context, id string) (*academic.AcademicYear, error)
	FindYear(ctx context.Context, studentID, year, schoolID string) (*academic.AcademicYear, error)
	// SaveYear replaces the whole record. Concurrent saves of one record are
	// last-write-wins.
	SaveYear(ctx context.Context, y *academic.AcademicYear) error
	SetYearClass(ctx context.Context, id, classID string) error
	DeleteYear(ctx context.Context, id string) error

	ListCohort(ctx context.Context, classID, year string) ([]*academic.AcademicYear, error)
	ListSchoolYear(ctx context.Context, schoolID, year string) ([]*academic.AcademicYear, error)
	ListStudentYears(ctx context.Context, studentID string) ([]*academic.AcademicYear, error)
}

// Store is everything the services need
type Store interface {
	Transactor
	Students
	Classes
	Catalog
	AcademicYears
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
