package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/shared"
)

// runStoreContract exercises behaviour both implementations must share
func runStoreContract(t *testing.T, st Store) {
	ctx := context.Background()
	suffix := shared.GenerateID("T")

	t.Run("records", func(t *testing.T) {
		rec := academic.New("STU"+suffix, "SCH"+suffix, "2024-2025", "C"+suffix, time.Now())
		require.NoError(t, st.InsertYear(ctx, rec))

		dup := academic.New(rec.StudentID, rec.SchoolID, rec.Year, "OTHER", time.Now())
		err := st.InsertYear(ctx, dup)
		assert.True(t, errors.Is(err, shared.ErrConflict), "got %v", err)

		got, err := st.GetYear(ctx, rec.ID)
		require.NoError(t, err)
		got.HasRepeated = true
		fresh, _ := st.GetYear(ctx, rec.ID)
		assert.False(t, fresh.HasRepeated, "getters return copies")

		require.NoError(t, st.SaveYear(ctx, got))
		saved, err := st.FindYear(ctx, rec.StudentID, rec.Year, rec.SchoolID)
		require.NoError(t, err)
		assert.True(t, saved.HasRepeated)

		cohort, err := st.ListCohort(ctx, rec.ClassID, rec.Year)
		require.NoError(t, err)
		assert.Len(t, cohort, 1)

		require.NoError(t, st.DeleteYear(ctx, rec.ID))
		_, err = st.GetYear(ctx, rec.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound), "got %v", err)
	})

	t.Run("roster is a set", func(t *testing.T) {
		class := &shared.Class{ID: "CLS" + suffix, SchoolID: "SCH" + suffix, Name: "Form 1A", Level: "Form 1", AcademicYear: "2024-2025", StudentList: []string{}}
		require.NoError(t, st.InsertClass(ctx, class))
		require.NoError(t, st.AddToRoster(ctx, class.ID, "R1"))
		require.NoError(t, st.AddToRoster(ctx, class.ID, "R1"))
		require.NoError(t, st.AddToRoster(ctx, class.ID, "R2"))
		require.NoError(t, st.RemoveFromRoster(ctx, class.ID, "R1"))

		got, err := st.GetClass(ctx, class.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"R2"}, got.StudentList)
	})

	t.Run("current flag", func(t *testing.T) {
		school := "SCH" + suffix
		start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
		a := &shared.AcademicYearDetail{ID: "YA" + suffix, SchoolID: school, Name: "2023-2024", StartDate: start.AddDate(-1, 0, 0), EndDate: start, IsCurrent: true}
		b := &shared.AcademicYearDetail{ID: "YB" + suffix, SchoolID: school, Name: "2024-2025", StartDate: start, EndDate: start.AddDate(1, 0, 0)}
		require.NoError(t, st.InsertYearDetail(ctx, a))
		require.NoError(t, st.InsertYearDetail(ctx, b))

		require.NoError(t, st.ClearCurrent(ctx, KindAcademicYear, school))
		require.NoError(t, st.MarkCurrent(ctx, KindAcademicYear, b.ID))

		gotA, _ := st.GetYearDetail(ctx, a.ID)
		gotB, _ := st.GetYearDetail(ctx, b.ID)
		assert.False(t, gotA.IsCurrent)
		assert.True(t, gotB.IsCurrent)

		found, err := st.FindYearDetail(ctx, school, "2024-2025")
		require.NoError(t, err)
		assert.Equal(t, b.ID, found.ID)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_TransactionRollsBack(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.InsertStudent(ctx, &shared.Student{ID: "STU1", SchoolID: "SCH1"}))

	boom := errors.New("boom")
	err := st.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, st.AddStudentYear(ctx, "STU1", "R1"))
		require.NoError(t, st.InsertYear(ctx, academic.New("STU1", "SCH1", "2024-2025", "C1", time.Now())))
		return boom
	})
	assert.Equal(t, boom, err)

	stu, _ := st.GetStudent(ctx, "STU1")
	assert.Empty(t, stu.AcademicYears)
	recs, _ := st.ListStudentYears(ctx, "STU1")
	assert.Empty(t, recs)
}

func TestMemoryStore_FailSaveYear(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	rec := academic.New("STU1", "SCH1", "2024-2025", "C1", time.Now())
	require.NoError(t, st.InsertYear(ctx, rec))

	st.FailSaveYear = func(*academic.AcademicYear) error { return errors.New("disk full") }
	assert.Error(t, st.SaveYear(ctx, rec))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	client, db, err := shared.ConnectMongoDB(shared.DefaultMongoConfig(uri, "grading_store_test"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = shared.DisconnectMongoDB(client)
	})

	st := NewMongoStore(client, db)
	require.NoError(t, st.EnsureIndexes(context.Background()))
	runStoreContract(t, st)
}
