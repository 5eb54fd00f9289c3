package academic

import (
	"math"

	"school_grading/backend/internal/shared"
)

// Discipline bands
const (
	BandExcellent    = "Excellent"
	BandVeryGood     = "Very Good"
	BandGood         = "Good"
	BandAverage      = "Average"
	BandBelowAverage = "Below Average"
)

// Discipline maps an average to its fixed band
func Discipline(avg float64) string {
	switch {
	case avg >= 16:
		return BandExcellent
	case avg >= 14:
		return BandVeryGood
	case avg >= 12:
		return BandGood
	case avg >= 10:
		return BandAverage
	default:
		return BandBelowAverage
	}
}

// CalculateAverages recomputes every sequence and term average, bottom-up,
// along with their discipline bands. It does not touch rank fields.
func (y *AcademicYear) CalculateAverages(w Weighting) error {
	for ti := range y.Terms {
		term := &y.Terms[ti]

		var sum float64
		var active int
		for si := range term.Sequences {
			seq := &term.Sequences[si]

			avg, graded, err := sequenceAverage(seq, w)
			if err != nil {
				return err
			}
			seq.Average = avg
			seq.Discipline = Discipline(avg)

			// a sequence joins the term mean once it holds a counted mark
			if seq.IsActive && graded {
				sum += avg
				active++
			}
		}

		term.Average = 0
		if active > 0 {
			term.Average = round2(sum / float64(active))
		}
		term.Discipline = Discipline(term.Average)
	}
	return nil
}

// sequenceAverage is Σ(mark × coefficient) / Σ(coefficient) over counted
// subjects. graded is false when no subject counted.
func sequenceAverage(seq *SequenceRecord, w Weighting) (avg float64, graded bool, err error) {
	var weighted, coefficients float64

	for i := range seq.Subjects {
		sub := &seq.Subjects[i]
		if sub.Marks.IsActive {
			sub.Discipline = Discipline(sub.Marks.CurrentMark)
		}
		if !counts(sub, w) {
			continue
		}

		coef, ok := w.Coefficient(sub.SubjectID)
		if !ok {
			return 0, false, shared.Preconditionf("subject %s has no coefficient in the class subject table", sub.SubjectID)
		}

		weighted += clampMark(sub.Marks.CurrentMark) * coef
		coefficients += coef
	}

	if coefficients == 0 {
		return 0, false, nil
	}
	return round2(weighted / coefficients), true, nil
}

func counts(sub *SubjectMark, w Weighting) bool {
	return sub.IsActive && sub.Marks.IsActive && w.IsSubjectActive(sub.SubjectID)
}

// graded reports whether an active sequence of the term holds an active mark
func (t *TermRecord) graded() bool {
	for _, s := range t.Sequences {
		if !s.IsActive {
			continue
		}
		for _, sub := range s.Subjects {
			if sub.IsActive && sub.Marks.IsActive {
				return true
			}
		}
	}
	return false
}

// ============================================================================
// Derived fields (computed on read, never stored)
// ============================================================================

// OverallAverage is the unweighted mean of the graded term averages; 0 when
// nothing is graded yet
func (y *AcademicYear) OverallAverage() float64 {
	var sum float64
	var n int
	for i := range y.Terms {
		if !y.Terms[i].graded() {
			continue
		}
		sum += y.Terms[i].Average
		n++
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

// OverallStatus is the discipline band of OverallAverage
func (y *AcademicYear) OverallStatus() string {
	return Discipline(y.OverallAverage())
}

// HasFailingSubjects reports any graded subject mark below the pass mark
func (y *AcademicYear) HasFailingSubjects() bool {
	for _, t := range y.Terms {
		for _, s := range t.Sequences {
			for _, sub := range s.Subjects {
				if sub.Marks.IsActive && sub.Marks.CurrentMark < shared.PassMark {
					return true
				}
			}
		}
	}
	return false
}

// TotalFeesPaid sums every fee amount
func (y *AcademicYear) TotalFeesPaid() float64 {
	var total float64
	for _, f := range y.Fees {
		total += f.Amount
	}
	return total
}

// CheckYearCompletion sets HasCompleted iff every term average reaches the
// pass mark and no subject mark is below it.
func (y *AcademicYear) CheckYearCompletion() bool {
	completed := !y.HasFailingSubjects()
	for _, t := range y.Terms {
		if t.Average < shared.PassMark {
			completed = false
			break
		}
	}
	y.HasCompleted = completed
	return completed
}

// AtRisk reports a graded term average below threshold or any failing subject
func (y *AcademicYear) AtRisk(threshold float64) bool {
	for i := range y.Terms {
		if y.Terms[i].graded() && y.Terms[i].Average < threshold {
			return true
		}
	}
	return y.HasFailingSubjects()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampMark(v float64) float64 {
	return math.Min(math.Max(v, shared.MinMark), shared.MaxMark)
}
