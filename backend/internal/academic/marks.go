package academic

import (
	"math"
	"time"

	"school_grading/backend/internal/shared"
)

// Weighting supplies the class's coefficient table and the catalog's
// subject activity flags to the averaging code.
type Weighting interface {
	Coefficient(subjectID string) (float64, bool)
	IsSubjectActive(subjectID string) bool
}

// MarkUpdate is the input of UpdateMark. SubjectID may be AbsencesSentinel.
type MarkUpdate struct {
	TermID     string   `json:"term_id" validate:"required"`
	SequenceID string   `json:"sequence_id" validate:"required"`
	SubjectID  string   `json:"subject_id" validate:"required"`
	Mark       *float64 `json:"mark" validate:"required"`
	ModifiedBy Modifier `json:"modified_by"`
}

// UpdateMark writes a mark (or an absence count) into the ledger, creating
// the term, sequence and subject slots on first use, then recomputes every
// average. term and sequence are the resolved catalog documents.
func (y *AcademicYear) UpdateMark(term *shared.Term, seq *shared.Sequence, upd MarkUpdate, w Weighting, now time.Time) error {
	if err := shared.ValidateStruct(upd); err != nil {
		return err
	}
	if term == nil || term.ID != upd.TermID {
		return shared.NotFoundf("term %s", upd.TermID)
	}
	if seq == nil || seq.ID != upd.SequenceID {
		return shared.NotFoundf("sequence %s", upd.SequenceID)
	}
	if seq.TermID != term.ID {
		return shared.Preconditionf("sequence %s does not belong to term %s", seq.ID, term.ID)
	}
	if !seq.IsActive {
		return shared.Preconditionf("Sequence is not Active")
	}

	value := *upd.Mark

	if upd.SubjectID == shared.AbsencesSentinel {
		if value < 0 || value != math.Trunc(value) {
			return shared.Invalidf("absences must be a non-negative whole number, got %v", value)
		}
		y.termRecord(term.ID).sequenceRecord(seq.ID).Absences = int(value)
		y.UpdatedAt = now
		return y.CalculateAverages(w)
	}

	if value < shared.MinMark || value > shared.MaxMark {
		return shared.Invalidf("mark %v is outside [%v, %v]", value, shared.MinMark, shared.MaxMark)
	}
	if _, ok := w.Coefficient(upd.SubjectID); !ok {
		return shared.Preconditionf("subject %s has no coefficient in class %s", upd.SubjectID, y.ClassID)
	}

	mark := y.termRecord(term.ID).sequenceRecord(seq.ID).subjectMark(upd.SubjectID)
	mark.write(value, upd.ModifiedBy, now)

	y.UpdatedAt = now
	return y.CalculateAverages(w)
}

// write sets the current mark. The first grading of a slot records no
// history; every later change appends one entry.
func (m *SubjectMark) write(value float64, by Modifier, now time.Time) {
	graded := m.Marks.IsActive || len(m.Marks.Modified) > 0
	if graded {
		m.Marks.Modified = append(m.Marks.Modified, MarkModification{
			PreMark:      m.Marks.CurrentMark,
			ModMark:      value,
			ModifiedBy:   by,
			DateModified: now,
		})
	}
	m.Marks.CurrentMark = value
	m.Marks.IsActive = true
	m.Discipline = Discipline(value)
}
