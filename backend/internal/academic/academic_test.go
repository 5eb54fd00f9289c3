package academic

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_grading/backend/internal/shared"
)

type weights struct {
	coef     map[string]float64
	inactive map[string]bool
}

func (w weights) Coefficient(subjectID string) (float64, bool) {
	c, ok := w.coef[subjectID]
	return c, ok
}

func (w weights) IsSubjectActive(subjectID string) bool {
	return !w.inactive[subjectID]
}

var (
	now     = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	teacher = Modifier{UserID: "U1", Name: "Mrs Ngono"}
	term1   = &shared.Term{ID: "T1", Name: "First Term", Order: 1}
	seq1    = &shared.Sequence{ID: "S1", TermID: "T1", Name: "Sequence 1", Order: 1, IsActive: true}
	seq2    = &shared.Sequence{ID: "S2", TermID: "T1", Name: "Sequence 2", Order: 2, IsActive: true}
)

func mark(v float64) *float64 { return &v }

func update(seq *shared.Sequence, subject string, v float64) MarkUpdate {
	return MarkUpdate{TermID: "T1", SequenceID: seq.ID, SubjectID: subject, Mark: mark(v), ModifiedBy: teacher}
}

func newYear() *AcademicYear {
	return New("STU1", "SCH1", "2024-2025", "C1", now)
}

func TestUpdateMark_WeightedSequenceAverage(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 4, "ENG": 2}}
	y := newYear()

	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 15), w, now))
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "ENG", 12), w, now))

	seq := y.FindSequence("T1", "S1")
	require.NotNil(t, seq)
	assert.Equal(t, 14.0, seq.Average)
	assert.Equal(t, BandVeryGood, seq.Discipline)
	assert.Equal(t, 14.0, y.FindTerm("T1").Average)
}

func TestUpdateMark_ThreeSubjects(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 2, "ENG": 1, "PHYS": 3}}
	y := newYear()

	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 12), w, now))
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "ENG", 8), w, now))
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "PHYS", 16), w, now))

	assert.Equal(t, 13.33, y.FindSequence("T1", "S1").Average)
}

func TestUpdateMark_RoundsToTwoDecimals(t *testing.T) {
	w := weights{coef: map[string]float64{"A": 1, "B": 1, "C": 1}}
	y := newYear()

	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "A", 10), w, now))
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "B", 10), w, now))
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "C", 11), w, now))

	assert.Equal(t, 10.33, y.FindSequence("T1", "S1").Average)
}

func TestUpdateMark_TermAverageIsUnweighted(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 3}}
	y := newYear()

	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 12), w, now))
	require.NoError(t, y.UpdateMark(term1, seq2, update(seq2, "MATH", 15), w, now))

	assert.Equal(t, 13.5, y.FindTerm("T1").Average)
	assert.Equal(t, BandGood, y.FindTerm("T1").Discipline)
}

func TestUpdateMark_History(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 2}}
	y := newYear()

	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 8), w, now))
	sub := y.FindSubject("T1", "S1", "MATH")
	require.NotNil(t, sub)
	assert.Empty(t, sub.Marks.Modified)

	later := now.Add(time.Hour)
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 13), w, later))

	sub = y.FindSubject("T1", "S1", "MATH")
	require.Len(t, sub.Marks.Modified, 1)
	entry := sub.Marks.Modified[0]
	assert.Equal(t, 8.0, entry.PreMark)
	assert.Equal(t, 13.0, entry.ModMark)
	assert.Equal(t, teacher, entry.ModifiedBy)
	assert.Equal(t, later, entry.DateModified)
	assert.Equal(t, 13.0, sub.Marks.CurrentMark)
	assert.Equal(t, BandGood, sub.Discipline)
}

func TestUpdateMark_LazyCreationDoesNotDuplicate(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 1}}
	y := newYear()

	for i := 0; i < 3; i++ {
		require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 10+float64(i)), w, now))
	}

	require.Len(t, y.Terms, 1)
	require.Len(t, y.Terms[0].Sequences, 1)
	require.Len(t, y.Terms[0].Sequences[0].Subjects, 1)
	assert.True(t, y.Terms[0].IsActive)
	assert.True(t, y.Terms[0].Sequences[0].IsActive)
}

func TestUpdateMark_Absences(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 1}}
	y := newYear()

	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, shared.AbsencesSentinel, 4), w, now))
	seq := y.FindSequence("T1", "S1")
	require.NotNil(t, seq)
	assert.Equal(t, 4, seq.Absences)
	assert.Empty(t, seq.Subjects)

	err := y.UpdateMark(term1, seq1, update(seq1, shared.AbsencesSentinel, 1.5), w, now)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUpdateMark_Rejections(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 1}}

	t.Run("inactive sequence", func(t *testing.T) {
		y := newYear()
		closed := *seq1
		closed.IsActive = false
		err := y.UpdateMark(term1, &closed, update(&closed, "MATH", 12), w, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrPrecondition))
		assert.Equal(t, "Sequence is not Active", shared.Message(err))
		assert.Empty(t, y.Terms)
	})

	t.Run("out of range", func(t *testing.T) {
		y := newYear()
		err := y.UpdateMark(term1, seq1, update(seq1, "MATH", 21), w, now)
		assert.True(t, errors.Is(err, shared.ErrValidation))
		assert.Empty(t, y.Terms)
	})

	t.Run("missing modifier", func(t *testing.T) {
		y := newYear()
		upd := update(seq1, "MATH", 12)
		upd.ModifiedBy = Modifier{}
		err := y.UpdateMark(term1, seq1, upd, w, now)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("missing mark", func(t *testing.T) {
		y := newYear()
		upd := update(seq1, "MATH", 12)
		upd.Mark = nil
		err := y.UpdateMark(term1, seq1, upd, w, now)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("unknown coefficient", func(t *testing.T) {
		y := newYear()
		err := y.UpdateMark(term1, seq1, update(seq1, "PHYS", 12), w, now)
		assert.True(t, errors.Is(err, shared.ErrPrecondition))
		assert.Empty(t, y.Terms)
	})

	t.Run("sequence from another term", func(t *testing.T) {
		y := newYear()
		other := &shared.Sequence{ID: "S9", TermID: "T2", IsActive: true}
		err := y.UpdateMark(term1, other, update(other, "MATH", 12), w, now)
		assert.True(t, errors.Is(err, shared.ErrPrecondition))
	})

	t.Run("unresolved term", func(t *testing.T) {
		y := newYear()
		err := y.UpdateMark(nil, seq1, update(seq1, "MATH", 12), w, now)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestCalculateAverages_Idempotent(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 4, "ENG": 2, "HIST": 1}}
	y := newYear()
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 11.5), w, now))
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "ENG", 17), w, now))
	require.NoError(t, y.UpdateMark(term1, seq2, update(seq2, "HIST", 9), w, now))

	first, err := json.Marshal(y)
	require.NoError(t, err)

	require.NoError(t, y.CalculateAverages(w))
	second, err := json.Marshal(y)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestCalculateAverages_SkipsInactive(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 2, "ART": 1}}
	y := newYear()
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 14), w, now))
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "ART", 5), w, now))
	require.NoError(t, y.UpdateMark(term1, seq2, update(seq2, "MATH", 6), w, now))

	t.Run("catalog subject inactive", func(t *testing.T) {
		w.inactive = map[string]bool{"ART": true}
		require.NoError(t, y.CalculateAverages(w))
		assert.Equal(t, 14.0, y.FindSequence("T1", "S1").Average)
		w.inactive = nil
	})

	t.Run("sequence inactive", func(t *testing.T) {
		y.FindSequence("T1", "S2").IsActive = false
		require.NoError(t, y.CalculateAverages(w))
		assert.Equal(t, 11.0, y.FindSequence("T1", "S1").Average)
		assert.Equal(t, 11.0, y.FindTerm("T1").Average)
	})

	t.Run("skeleton slot", func(t *testing.T) {
		y.SeedSlot("T1", "S1", "GEO")
		require.NoError(t, y.CalculateAverages(w))
		assert.Equal(t, 11.0, y.FindSequence("T1", "S1").Average)
	})
}

func TestCalculateAverages_UngradedSequenceLeftOut(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 1, "ENG": 1}}

	seeded := newYear()
	seeded.SeedSlot("T1", "S1", "MATH")
	seeded.SeedSlot("T1", "S2", "MATH")
	seeded.SeedSlot("T1", "S2", "ENG")
	seeded.SeedSlot("T2", "S3", "MATH")
	require.NoError(t, seeded.UpdateMark(term1, seq1, update(seq1, "MATH", 14), w, now))

	lazy := newYear()
	require.NoError(t, lazy.UpdateMark(term1, seq1, update(seq1, "MATH", 14), w, now))

	for name, y := range map[string]*AcademicYear{"seeded": seeded, "lazy": lazy} {
		assert.Equal(t, 14.0, y.FindTerm("T1").Average, name)
		assert.Equal(t, 14.0, y.OverallAverage(), name)
		assert.False(t, y.AtRisk(10), name)
	}
	assert.Equal(t, 0.0, seeded.FindTerm("T2").Average)
	assert.False(t, seeded.CheckYearCompletion(), "an ungraded term still blocks completion")
}

func TestCalculateAverages_EmptyIsZero(t *testing.T) {
	y := newYear()
	y.SeedSlot("T1", "S1", "")
	require.NoError(t, y.CalculateAverages(weights{}))

	assert.Equal(t, 0.0, y.FindSequence("T1", "S1").Average)
	assert.Equal(t, 0.0, y.FindTerm("T1").Average)
	assert.Equal(t, BandBelowAverage, y.FindTerm("T1").Discipline)
}

func TestDiscipline(t *testing.T) {
	cases := map[float64]string{
		20:    BandExcellent,
		16:    BandExcellent,
		15.99: BandVeryGood,
		14:    BandVeryGood,
		12:    BandGood,
		11.99: BandAverage,
		10:    BandAverage,
		9.99:  BandBelowAverage,
		0:     BandBelowAverage,
	}
	for avg, want := range cases {
		assert.Equal(t, want, Discipline(avg), "average %v", avg)
	}
}

func TestDerivedFields(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 1}}
	term2 := &shared.Term{ID: "T2", Order: 2}
	seq3 := &shared.Sequence{ID: "S3", TermID: "T2", IsActive: true}

	y := newYear()
	assert.Equal(t, 0.0, y.OverallAverage())

	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 12), w, now))
	upd := MarkUpdate{TermID: "T2", SequenceID: "S3", SubjectID: "MATH", Mark: mark(15), ModifiedBy: teacher}
	require.NoError(t, y.UpdateMark(term2, seq3, upd, w, now))

	assert.Equal(t, 13.5, y.OverallAverage())
	assert.Equal(t, BandGood, y.OverallStatus())
	assert.False(t, y.HasFailingSubjects())

	require.NoError(t, y.AddFee(Fee{BillID: "B1", Type: "tuition", Amount: 50000}, now))
	require.NoError(t, y.AddFee(Fee{BillID: "B2", Type: "uniform", Amount: 12500}, now))
	assert.Equal(t, 62500.0, y.TotalFeesPaid())

	raw, err := json.Marshal(y)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 13.5, out["overall_average"])
	assert.Equal(t, BandGood, out["overall_status"])
	assert.Equal(t, false, out["has_failing_subjects"])
	assert.Equal(t, 62500.0, out["total_fees_paid"])
}

func TestCheckYearCompletion(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 3, "ENG": 1}}

	t.Run("passing", func(t *testing.T) {
		y := newYear()
		require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 12), w, now))
		require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "ENG", 10), w, now))
		assert.True(t, y.CheckYearCompletion())
		assert.True(t, y.HasCompleted)
	})

	t.Run("failing subject with passing average", func(t *testing.T) {
		y := newYear()
		require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 16), w, now))
		require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "ENG", 8), w, now))
		require.GreaterOrEqual(t, y.FindTerm("T1").Average, shared.PassMark)
		assert.False(t, y.CheckYearCompletion())
		assert.False(t, y.HasCompleted)
		assert.True(t, y.AtRisk(10))
	})

	t.Run("failing term average", func(t *testing.T) {
		y := newYear()
		require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 10), w, now))
		require.NoError(t, y.UpdateMark(term1, seq2, update(seq2, "MATH", 10), w, now))
		y.FindTerm("T1").Average = 9.5
		assert.False(t, y.CheckYearCompletion())
	})
}

func TestAtRisk_Threshold(t *testing.T) {
	w := weights{coef: map[string]float64{"MATH": 1}}
	y := newYear()
	require.NoError(t, y.UpdateMark(term1, seq1, update(seq1, "MATH", 11), w, now))

	assert.False(t, y.AtRisk(10))
	assert.True(t, y.AtRisk(12))
}

func TestFees(t *testing.T) {
	y := newYear()
	require.NoError(t, y.AddFee(Fee{BillID: "B1", Type: "tuition", Amount: 100}, now))

	t.Run("duplicate bill", func(t *testing.T) {
		err := y.AddFee(Fee{BillID: "B1", Type: "tuition", Amount: 10}, now)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("invalid amount", func(t *testing.T) {
		err := y.AddFee(Fee{BillID: "B2", Type: "tuition", Amount: 0}, now)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("update", func(t *testing.T) {
		amount := 150.0
		method := "cash"
		require.NoError(t, y.UpdateFee("B1", FeePatch{Amount: &amount, PaymentMethod: &method}, now))
		fee := y.FindFee("B1")
		assert.Equal(t, 150.0, fee.Amount)
		assert.Equal(t, "cash", fee.PaymentMethod)
		assert.Equal(t, "tuition", fee.Type)
	})

	t.Run("update unknown", func(t *testing.T) {
		err := y.UpdateFee("NOPE", FeePatch{}, now)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, y.DeleteFee("B1", now))
		assert.Empty(t, y.Fees)
		assert.True(t, errors.Is(y.DeleteFee("B1", now), shared.ErrNotFound))
	})
}
