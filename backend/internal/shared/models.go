// ============================================================================
// backend/internal/shared/models.go
// Catalog, class and student documents stored in MongoDB
// ============================================================================

package shared

import (
	"time"
)

// ============================================================================
// Student Models
// ============================================================================

// Student holds identity and demographics. Grades live in academic year
// records; the student only keeps references to them.
type Student struct {
	ID          string    `bson:"_id" json:"id"`
	SchoolID    string    `bson:"school_id" json:"school_id" validate:"required"`
	Matricule   string    `bson:"matricule" json:"matricule" validate:"required"`
	FirstName   string    `bson:"first_name" json:"first_name" validate:"required"`
	LastName    string    `bson:"last_name" json:"last_name" validate:"required"`
	Gender      string    `bson:"gender,omitempty" json:"gender,omitempty" validate:"omitempty,oneof=M F"`
	DateOfBirth time.Time `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	Level       string    `bson:"level" json:"level" validate:"required"`

	ClassID       string   `bson:"class_id,omitempty" json:"class_id,omitempty"`
	AcademicYears []string `bson:"academic_years" json:"academic_years"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// FullName returns "First Last"
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// ============================================================================
// Class Models
// ============================================================================

// ClassSubject is one line of a class's subject table. The coefficient here is
// the only weighting source used when averaging marks.
type ClassSubject struct {
	SubjectID   string  `bson:"subject_id" json:"subject_id" validate:"required"`
	Coefficient float64 `bson:"coefficient" json:"coefficient" validate:"gt=0"`
	TeacherID   string  `bson:"teacher_id,omitempty" json:"teacher_id,omitempty"`
}

// Class is a school class for one academic year
type Class struct {
	ID           string  `bson:"_id" json:"id"`
	SchoolID     string  `bson:"school_id" json:"school_id" validate:"required"`
	Name         string  `bson:"name" json:"name" validate:"required"`
	Level        string  `bson:"level" json:"level" validate:"required"`
	Capacity     int32   `bson:"capacity" json:"capacity" validate:"gte=0"`
	FeeAmount    float64 `bson:"fee_amount" json:"fee_amount" validate:"gte=0"`
	Status       string  `bson:"status" json:"status" validate:"omitempty,oneof=Open Closed"`
	AcademicYear string  `bson:"academic_year" json:"academic_year" validate:"required,yearname"`

	Subjects    []ClassSubject `bson:"subjects" json:"subjects"`
	StudentList []string       `bson:"student_list" json:"student_list"` // academic year record ids

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// SubjectEntry returns the subject table line for subjectID
func (c *Class) SubjectEntry(subjectID string) (ClassSubject, bool) {
	for _, s := range c.Subjects {
		if s.SubjectID == subjectID {
			return s, true
		}
	}
	return ClassSubject{}, false
}

// HasRecord checks if an academic year record is already on the roster
func (c *Class) HasRecord(recordID string) bool {
	for _, id := range c.StudentList {
		if id == recordID {
			return true
		}
	}
	return false
}

// IsOpen checks if the class accepts new students
func (c *Class) IsOpen() bool {
	return c.Status != ClassStatusClosed
}

// ============================================================================
// Catalog Models
// ============================================================================

// Subject is a catalog subject scoped to a school
type Subject struct {
	ID       string `bson:"_id" json:"id"`
	SchoolID string `bson:"school_id" json:"school_id" validate:"required"`
	Code     string `bson:"code" json:"code" validate:"required"`
	Name     string `bson:"name" json:"name" validate:"required"`
	IsActive bool   `bson:"is_active" json:"is_active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// AcademicYearDetail is the calendar shell of a school year ("2024-2025")
type AcademicYearDetail struct {
	ID        string    `bson:"_id" json:"id"`
	SchoolID  string    `bson:"school_id" json:"school_id" validate:"required"`
	Name      string    `bson:"name" json:"name" validate:"required,yearname"`
	StartDate time.Time `bson:"start_date" json:"start_date" validate:"required"`
	EndDate   time.Time `bson:"end_date" json:"end_date" validate:"required"`
	IsCurrent bool      `bson:"is_current" json:"is_current"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Term belongs to an AcademicYearDetail
type Term struct {
	ID             string    `bson:"_id" json:"id"`
	SchoolID       string    `bson:"school_id" json:"school_id" validate:"required"`
	AcademicYearID string    `bson:"academic_year_id" json:"academic_year_id" validate:"required"`
	Name           string    `bson:"name" json:"name" validate:"required"`
	Order          int       `bson:"order" json:"order" validate:"gte=1"`
	StartDate      time.Time `bson:"start_date" json:"start_date" validate:"required"`
	EndDate        time.Time `bson:"end_date" json:"end_date" validate:"required"`
	Status         string    `bson:"status" json:"status"`
	IsCurrent      bool      `bson:"is_current" json:"is_current"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Sequence is the smallest graded period and belongs to a Term
type Sequence struct {
	ID        string    `bson:"_id" json:"id"`
	SchoolID  string    `bson:"school_id" json:"school_id" validate:"required"`
	TermID    string    `bson:"term_id" json:"term_id" validate:"required"`
	Name      string    `bson:"name" json:"name" validate:"required"`
	Order     int       `bson:"order" json:"order" validate:"gte=1"`
	StartDate time.Time `bson:"start_date" json:"start_date" validate:"required"`
	EndDate   time.Time `bson:"end_date" json:"end_date" validate:"required"`
	Status    string    `bson:"status" json:"status"`
	IsCurrent bool      `bson:"is_current" json:"is_current"`
	IsActive  bool      `bson:"is_active" json:"is_active"` // mark entry allowed

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ============================================================================
// Identity
// ============================================================================

// Identity is whoever the HTTP layer says is acting. The core records it, it
// never authenticates it.
type Identity struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	SchoolID string `json:"school_id"`
}

// ============================================================================
// Status Helpers
// ============================================================================

// PeriodStatus derives a period's status from its dates. pending is the status
// used before the start date ("upcoming" for terms, "scheduled" for sequences).
func PeriodStatus(start, end, now time.Time, pending string) string {
	switch {
	case now.Before(start):
		return pending
	case now.After(end):
		return StatusCompleted
	default:
		return StatusActive
	}
}

// ============================================================================
// Validation Constants
// ============================================================================

const (
	// Class statuses
	ClassStatusOpen   = "Open"
	ClassStatusClosed = "Closed"

	// Period statuses
	StatusUpcoming  = "upcoming"
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusCompleted = "completed"

	// Mark bounds
	MinMark  = 0.0
	MaxMark  = 20.0
	PassMark = 10.0

	// AbsencesSentinel in place of a subject id sets a sequence's absence count
	AbsencesSentinel = "absences"
)
