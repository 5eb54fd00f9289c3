package grade

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/catalog"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

const year = "2024-2025"

var teacher = academic.Modifier{UserID: "U1", Name: "Mme Ngo"}

func newService(t *testing.T) (*GradeService, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	for _, s := range []shared.Subject{
		{ID: "MATH", SchoolID: "SCH1", Code: "MTH", Name: "Mathematics", IsActive: true},
		{ID: "ENG", SchoolID: "SCH1", Code: "ENG", Name: "English", IsActive: true},
	} {
		s := s
		require.NoError(t, st.InsertSubject(ctx, &s))
	}
	require.NoError(t, st.InsertClass(ctx, &shared.Class{
		ID: "C1", SchoolID: "SCH1", Name: "Form 1A", Level: "Form 1", Status: shared.ClassStatusOpen, AcademicYear: year,
		Subjects: []shared.ClassSubject{{SubjectID: "MATH", Coefficient: 4}, {SubjectID: "ENG", Coefficient: 2}},
	}))
	require.NoError(t, st.InsertStudent(ctx, &shared.Student{ID: "STU1", SchoolID: "SCH1", FirstName: "Awa", LastName: "Bello", Level: "Form 1"}))
	require.NoError(t, st.InsertStudent(ctx, &shared.Student{ID: "STU2", SchoolID: "SCH1", FirstName: "Jean", LastName: "Eto", Level: "Form 1"}))

	start := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.InsertYearDetail(ctx, &shared.AcademicYearDetail{ID: "YR1", SchoolID: "SCH1", Name: year, StartDate: start, EndDate: start.AddDate(0, 10, 0), IsCurrent: true}))
	require.NoError(t, st.InsertTerm(ctx, &shared.Term{ID: "T1", SchoolID: "SCH1", AcademicYearID: "YR1", Name: "First Term", Order: 1, StartDate: start, EndDate: start.AddDate(0, 3, 0)}))
	require.NoError(t, st.InsertSequence(ctx, &shared.Sequence{ID: "S1", SchoolID: "SCH1", TermID: "T1", Name: "Sequence 1", Order: 1, StartDate: start, EndDate: start.AddDate(0, 1, 0), IsActive: true}))
	require.NoError(t, st.InsertSequence(ctx, &shared.Sequence{ID: "S2", SchoolID: "SCH1", TermID: "T1", Name: "Sequence 2", Order: 2, StartDate: start.AddDate(0, 1, 0), EndDate: start.AddDate(0, 2, 0)}))

	return NewGradeService(st, catalog.NewCatalogService(st)), st
}

func createRecord(t *testing.T, svc *GradeService, studentID string) *academic.AcademicYear {
	t.Helper()
	rec, err := svc.CreateAcademicYear(context.Background(), CreateYearRequest{StudentID: studentID, ClassID: "C1", SchoolID: "SCH1", Year: year})
	require.NoError(t, err)
	return rec
}

func mark(termID, seqID, subjectID string, v float64) academic.MarkUpdate {
	return academic.MarkUpdate{TermID: termID, SequenceID: seqID, SubjectID: subjectID, Mark: &v, ModifiedBy: teacher}
}

func TestCreateAcademicYear_SeedsSkeleton(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	rec := createRecord(t, svc, "STU1")
	require.Len(t, rec.Terms, 1)
	require.Len(t, rec.Terms[0].Sequences, 2)
	for _, seq := range rec.Terms[0].Sequences {
		require.Len(t, seq.Subjects, 2)
		for _, sub := range seq.Subjects {
			assert.False(t, sub.Marks.IsActive, "seeded slots start ungraded")
		}
	}
	assert.False(t, rec.HasFailingSubjects())

	student, _ := st.GetStudent(ctx, "STU1")
	assert.Equal(t, []string{rec.ID}, student.AcademicYears)
	class, _ := st.GetClass(ctx, "C1")
	assert.Equal(t, []string{rec.ID}, class.StudentList)

	_, err := svc.CreateAcademicYear(ctx, CreateYearRequest{StudentID: "STU1", ClassID: "C1", SchoolID: "SCH1", Year: year})
	assert.True(t, errors.Is(err, shared.ErrConflict), "got %v", err)
}

func TestCreateAcademicYear_Rejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateYearRequest
		want error
	}{
		{"malformed year", CreateYearRequest{StudentID: "STU1", ClassID: "C1", SchoolID: "SCH1", Year: "24-25"}, shared.ErrValidation},
		{"unknown student", CreateYearRequest{StudentID: "NOPE", ClassID: "C1", SchoolID: "SCH1", Year: year}, shared.ErrNotFound},
		{"unknown class", CreateYearRequest{StudentID: "STU1", ClassID: "NOPE", SchoolID: "SCH1", Year: year}, shared.ErrNotFound},
		{"unknown year", CreateYearRequest{StudentID: "STU1", ClassID: "C1", SchoolID: "SCH1", Year: "2030-2031"}, shared.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAcademicYear(ctx, tc.req)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestUpdateMark_EndToEnd(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	rec := createRecord(t, svc, "STU1")

	_, err := svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", "MATH", 16))
	require.NoError(t, err)
	_, err = svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", "ENG", 10))
	require.NoError(t, err)

	saved, err := st.GetYear(ctx, rec.ID)
	require.NoError(t, err)
	seq := saved.FindSequence("T1", "S1")
	assert.Equal(t, 14.0, seq.Average)
	assert.Equal(t, academic.Discipline(14), seq.Discipline)

	// regrading keeps the previous value in the history
	_, err = svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", "MATH", 12))
	require.NoError(t, err)
	saved, _ = st.GetYear(ctx, rec.ID)
	math := saved.FindSubject("T1", "S1", "MATH")
	require.Len(t, math.Marks.Modified, 1)
	assert.Equal(t, 16.0, math.Marks.Modified[0].PreMark)
	assert.Equal(t, 12.0, math.Marks.Modified[0].ModMark)
	assert.Equal(t, teacher, math.Marks.Modified[0].ModifiedBy)

	_, err = svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", shared.AbsencesSentinel, 3))
	require.NoError(t, err)
	saved, _ = st.GetYear(ctx, rec.ID)
	assert.Equal(t, 3, saved.FindSequence("T1", "S1").Absences)
}

func TestUpdateMark_Rejections(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	rec := createRecord(t, svc, "STU1")

	_, err := svc.UpdateMark(ctx, rec.ID, mark("T1", "S2", "MATH", 12))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrPrecondition))
	assert.Equal(t, "Sequence is not Active", shared.Message(err))

	_, err = svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", "MATH", 21))
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", "BIO", 12))
	assert.True(t, errors.Is(err, shared.ErrPrecondition))

	_, err = svc.UpdateMark(ctx, "NOPE", mark("T1", "S1", "MATH", 12))
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = svc.UpdateMark(ctx, rec.ID, mark("T9", "S1", "MATH", 12))
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	// nothing was written
	saved, _ := st.GetYear(ctx, rec.ID)
	assert.False(t, saved.FindSubject("T1", "S1", "MATH").Marks.IsActive)
}

func TestUpdateMark_RejectsForeignCalendar(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	rec := createRecord(t, svc, "STU1")

	start := time.Date(2023, 9, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.InsertYearDetail(ctx, &shared.AcademicYearDetail{ID: "YR0", SchoolID: "SCH1", Name: "2023-2024", StartDate: start, EndDate: start.AddDate(0, 10, 0)}))
	require.NoError(t, st.InsertTerm(ctx, &shared.Term{ID: "T0", SchoolID: "SCH1", AcademicYearID: "YR0", Name: "First Term", Order: 1, StartDate: start, EndDate: start.AddDate(0, 3, 0)}))
	require.NoError(t, st.InsertSequence(ctx, &shared.Sequence{ID: "S0", SchoolID: "SCH1", TermID: "T0", Name: "Sequence 1", Order: 1, StartDate: start, EndDate: start.AddDate(0, 1, 0), IsActive: true}))

	require.NoError(t, st.InsertYearDetail(ctx, &shared.AcademicYearDetail{ID: "YRX", SchoolID: "SCH2", Name: year, StartDate: start, EndDate: start.AddDate(0, 10, 0)}))
	require.NoError(t, st.InsertTerm(ctx, &shared.Term{ID: "TX", SchoolID: "SCH2", AcademicYearID: "YRX", Name: "First Term", Order: 1, StartDate: start, EndDate: start.AddDate(0, 3, 0)}))
	require.NoError(t, st.InsertSequence(ctx, &shared.Sequence{ID: "SX", SchoolID: "SCH2", TermID: "TX", Name: "Sequence 1", Order: 1, StartDate: start, EndDate: start.AddDate(0, 1, 0), IsActive: true}))

	t.Run("term of another year", func(t *testing.T) {
		_, err := svc.UpdateMark(ctx, rec.ID, mark("T0", "S0", "MATH", 12))
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrPrecondition))
	})

	t.Run("term of another school", func(t *testing.T) {
		_, err := svc.UpdateMark(ctx, rec.ID, mark("TX", "SX", "MATH", 12))
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrPrecondition))
	})

	saved, err := st.GetYear(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, saved.FindTerm("T0"))
	assert.Nil(t, saved.FindTerm("TX"))
}

func TestDeleteAcademicYear_Cascades(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	rec := createRecord(t, svc, "STU1")

	require.NoError(t, svc.DeleteAcademicYear(ctx, rec.ID))

	_, err := st.GetYear(ctx, rec.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	student, _ := st.GetStudent(ctx, "STU1")
	assert.Empty(t, student.AcademicYears)
	class, _ := st.GetClass(ctx, "C1")
	assert.Empty(t, class.StudentList)

	assert.True(t, errors.Is(svc.DeleteAcademicYear(ctx, rec.ID), shared.ErrNotFound))
}

func TestRecalculateAverages_AfterSubjectRemoval(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	rec := createRecord(t, svc, "STU1")

	_, err := svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", "MATH", 16))
	require.NoError(t, err)
	_, err = svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", "ENG", 10))
	require.NoError(t, err)

	require.NoError(t, st.UpdateClassSubjects(ctx, "C1", []shared.ClassSubject{{SubjectID: "MATH", Coefficient: 4}}))

	updated, err := svc.RecalculateAverages(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 16.0, updated.FindSequence("T1", "S1").Average)
}

func TestFindStudentsAtRisk(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	weak := createRecord(t, svc, "STU1")
	strong := createRecord(t, svc, "STU2")

	_, err := svc.UpdateMark(ctx, weak.ID, mark("T1", "S1", "MATH", 6))
	require.NoError(t, err)
	_, err = svc.UpdateMark(ctx, strong.ID, mark("T1", "S1", "MATH", 18))
	require.NoError(t, err)

	risky, err := svc.FindStudentsAtRisk(ctx, "SCH1", year, 10)
	require.NoError(t, err)
	require.Len(t, risky, 1)
	assert.Equal(t, weak.ID, risky[0].ID)

	_, err = svc.FindStudentsAtRisk(ctx, "SCH1", "2024", 0)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestSeededAndLazyRecordsAverageAlike(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// seeded with two sequences of ungraded slots
	seeded := createRecord(t, svc, "STU1")
	seeded, err := svc.UpdateMark(ctx, seeded.ID, mark("T1", "S1", "MATH", 14))
	require.NoError(t, err)

	assert.Equal(t, 14.0, seeded.FindSequence("T1", "S1").Average)
	assert.Equal(t, 14.0, seeded.FindTerm("T1").Average)
	assert.Equal(t, 14.0, seeded.OverallAverage())
	assert.False(t, seeded.AtRisk(10))
	assert.False(t, seeded.HasFailingSubjects())

	risky, err := svc.FindStudentsAtRisk(ctx, "SCH1", year, 10)
	require.NoError(t, err)
	assert.Empty(t, risky)
}

func TestCheckYearCompletion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	rec := createRecord(t, svc, "STU1")

	_, err := svc.UpdateMark(ctx, rec.ID, mark("T1", "S1", "MATH", 8))
	require.NoError(t, err)

	checked, err := svc.CheckYearCompletion(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, checked.HasCompleted)
}

func TestFees(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	rec := createRecord(t, svc, "STU1")

	updated, err := svc.AddFee(ctx, rec.ID, academic.Fee{BillID: "B1", Type: "tuition", Amount: 50000})
	require.NoError(t, err)
	assert.False(t, updated.Fees[0].PaymentDate.IsZero())

	_, err = svc.AddFee(ctx, rec.ID, academic.Fee{BillID: "B1", Type: "tuition", Amount: 10})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	amount := 75000.0
	updated, err = svc.UpdateFee(ctx, rec.ID, "B1", academic.FeePatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, 75000.0, updated.TotalFeesPaid())

	_, err = svc.UpdateFee(ctx, rec.ID, "B9", academic.FeePatch{Amount: &amount})
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	updated, err = svc.DeleteFee(ctx, rec.ID, "B1")
	require.NoError(t, err)
	assert.Empty(t, updated.Fees)
}
