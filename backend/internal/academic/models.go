// Package academic holds the per-student, per-year grading aggregate: the
// nested term → sequence → subject mark ledger, its averages and the fee
// ledger. Nothing here touches storage; callers load, mutate and save.
package academic

import (
	"encoding/json"
	"time"

	"school_grading/backend/internal/shared"
)

// Modifier identifies who changed a mark
type Modifier struct {
	UserID string `bson:"user_id" json:"user_id" validate:"required"`
	Name   string `bson:"name" json:"name" validate:"required"`
}

// MarkModification is one entry of a subject mark's edit history
type MarkModification struct {
	PreMark      float64   `bson:"pre_mark" json:"pre_mark"`
	ModMark      float64   `bson:"mod_mark" json:"mod_mark"`
	ModifiedBy   Modifier  `bson:"modified_by" json:"modified_by"`
	DateModified time.Time `bson:"date_modified" json:"date_modified"`
}

// Marks carries the current value and its history. IsActive is false for a
// skeleton slot that has never been graded.
type Marks struct {
	CurrentMark float64            `bson:"current_mark" json:"current_mark"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	Modified    []MarkModification `bson:"modified" json:"modified"`
}

// SubjectMark is the mark ledger for one subject in one sequence
type SubjectMark struct {
	SubjectID  string `bson:"subject_id" json:"subject_id"`
	IsActive   bool   `bson:"is_active" json:"is_active"`
	Marks      Marks  `bson:"marks" json:"marks"`
	Discipline string `bson:"discipline" json:"discipline"`
	Rank       *int   `bson:"rank" json:"rank"`
}

// SequenceRecord groups subject marks for one sequence
type SequenceRecord struct {
	SequenceID string        `bson:"sequence_id" json:"sequence_id"`
	IsActive   bool          `bson:"is_active" json:"is_active"`
	Subjects   []SubjectMark `bson:"subjects" json:"subjects"`
	Absences   int           `bson:"absences" json:"absences"`
	Average    float64       `bson:"average" json:"average"`
	Discipline string        `bson:"discipline" json:"discipline"`
	Rank       *int          `bson:"rank" json:"rank"`
}

// TermRecord groups sequences for one term
type TermRecord struct {
	TermID     string           `bson:"term_id" json:"term_id"`
	IsActive   bool             `bson:"is_active" json:"is_active"`
	Sequences  []SequenceRecord `bson:"sequences" json:"sequences"`
	Average    float64          `bson:"average" json:"average"`
	Discipline string           `bson:"discipline" json:"discipline"`
	Rank       *int             `bson:"rank" json:"rank"`
}

// Fee is one payment on the record; BillID is unique within a record
type Fee struct {
	BillID        string    `bson:"bill_id" json:"bill_id" validate:"required"`
	Type          string    `bson:"type" json:"type" validate:"required"`
	Amount        float64   `bson:"amount" json:"amount" validate:"gt=0"`
	PaymentMethod string    `bson:"payment_method,omitempty" json:"payment_method,omitempty"`
	PaymentDate   time.Time `bson:"payment_date,omitempty" json:"payment_date,omitempty"`
}

// FeePatch lists the fee fields an update may change
type FeePatch struct {
	Type          *string    `json:"type,omitempty"`
	Amount        *float64   `json:"amount,omitempty" validate:"omitempty,gt=0"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
}

// AcademicYear is the grading record of one student for one year in one
// school. (StudentID, Year, SchoolID) is unique.
type AcademicYear struct {
	ID        string `bson:"_id" json:"id"`
	StudentID string `bson:"student_id" json:"student_id"`
	SchoolID  string `bson:"school_id" json:"school_id"`
	Year      string `bson:"year" json:"year"`
	ClassID   string `bson:"class_id" json:"class_id"`

	Terms []TermRecord `bson:"terms" json:"terms"`
	Fees  []Fee        `bson:"fees" json:"fees"`

	HasRepeated  bool `bson:"has_repeated" json:"has_repeated"`
	HasCompleted bool `bson:"has_completed" json:"has_completed"`
	Rank         *int `bson:"rank" json:"rank"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// New returns an empty record for (student, year, school) attached to classID
func New(studentID, schoolID, year, classID string, now time.Time) *AcademicYear {
	return &AcademicYear{
		ID:        shared.GenerateID("AY"),
		StudentID: studentID,
		SchoolID:  schoolID,
		Year:      year,
		ClassID:   classID,
		Terms:     []TermRecord{},
		Fees:      []Fee{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarshalJSON adds the derived fields, which are never persisted
func (y AcademicYear) MarshalJSON() ([]byte, error) {
	type plain AcademicYear
	return json.Marshal(struct {
		plain
		OverallAverage     float64 `json:"overall_average"`
		OverallStatus      string  `json:"overall_status"`
		HasFailingSubjects bool    `json:"has_failing_subjects"`
		TotalFeesPaid      float64 `json:"total_fees_paid"`
	}{
		plain:              plain(y),
		OverallAverage:     y.OverallAverage(),
		OverallStatus:      y.OverallStatus(),
		HasFailingSubjects: y.HasFailingSubjects(),
		TotalFeesPaid:      y.TotalFeesPaid(),
	})
}

// ============================================================================
// Lookups (read-only, no materialization)
// ============================================================================

// FindTerm returns the term record for termID or nil
func (y *AcademicYear) FindTerm(termID string) *TermRecord {
	for i := range y.Terms {
		if y.Terms[i].TermID == termID {
			return &y.Terms[i]
		}
	}
	return nil
}

// FindSequence returns the sequence record or nil
func (y *AcademicYear) FindSequence(termID, sequenceID string) *SequenceRecord {
	t := y.FindTerm(termID)
	if t == nil {
		return nil
	}
	return t.findSequence(sequenceID)
}

// FindSubject returns the subject mark or nil
func (y *AcademicYear) FindSubject(termID, sequenceID, subjectID string) *SubjectMark {
	s := y.FindSequence(termID, sequenceID)
	if s == nil {
		return nil
	}
	return s.findSubject(subjectID)
}

func (t *TermRecord) findSequence(sequenceID string) *SequenceRecord {
	for i := range t.Sequences {
		if t.Sequences[i].SequenceID == sequenceID {
			return &t.Sequences[i]
		}
	}
	return nil
}

func (s *SequenceRecord) findSubject(subjectID string) *SubjectMark {
	for i := range s.Subjects {
		if s.Subjects[i].SubjectID == subjectID {
			return &s.Subjects[i]
		}
	}
	return nil
}

// ============================================================================
// Get-or-create (lazy materialization of sub-documents)
// ============================================================================

func (y *AcademicYear) termRecord(termID string) *TermRecord {
	if t := y.FindTerm(termID); t != nil {
		return t
	}
	y.Terms = append(y.Terms, TermRecord{
		TermID:    termID,
		IsActive:  true,
		Sequences: []SequenceRecord{},
	})
	return &y.Terms[len(y.Terms)-1]
}

func (t *TermRecord) sequenceRecord(sequenceID string) *SequenceRecord {
	if s := t.findSequence(sequenceID); s != nil {
		return s
	}
	t.Sequences = append(t.Sequences, SequenceRecord{
		SequenceID: sequenceID,
		IsActive:   true,
		Subjects:   []SubjectMark{},
	})
	return &t.Sequences[len(t.Sequences)-1]
}

func (s *SequenceRecord) subjectMark(subjectID string) *SubjectMark {
	if m := s.findSubject(subjectID); m != nil {
		return m
	}
	s.Subjects = append(s.Subjects, SubjectMark{
		SubjectID: subjectID,
		IsActive:  true,
		Marks:     Marks{Modified: []MarkModification{}},
	})
	return &s.Subjects[len(s.Subjects)-1]
}

// SeedSlot materializes an ungraded term/sequence/subject slot. Used when a
// record is created from a catalog skeleton.
// Empty sequenceID or subjectID stops at the level above.
func (y *AcademicYear) SeedSlot(termID, sequenceID, subjectID string) {
	term := y.termRecord(termID)
	if sequenceID == "" {
		return
	}
	seq := term.sequenceRecord(sequenceID)
	if subjectID != "" {
		seq.subjectMark(subjectID)
	}
}

// Clone returns a deep copy of the record
func (y *AcademicYear) Clone() *AcademicYear {
	c := *y
	c.Rank = cloneRank(y.Rank)
	c.Fees = append([]Fee{}, y.Fees...)
	c.Terms = make([]TermRecord, len(y.Terms))
	for i, t := range y.Terms {
		t.Rank = cloneRank(t.Rank)
		seqs := make([]SequenceRecord, len(t.Sequences))
		for j, s := range t.Sequences {
			s.Rank = cloneRank(s.Rank)
			subs := make([]SubjectMark, len(s.Subjects))
			for k, sub := range s.Subjects {
				sub.Rank = cloneRank(sub.Rank)
				sub.Marks.Modified = append([]MarkModification{}, sub.Marks.Modified...)
				subs[k] = sub
			}
			s.Subjects = subs
			seqs[j] = s
		}
		t.Sequences = seqs
		c.Terms[i] = t
	}
	return &c
}

func cloneRank(r *int) *int {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}
