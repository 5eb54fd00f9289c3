package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

var (
	yearStart = time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	yearEnd   = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
)

func newCatalog() (*CatalogService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	svc := NewCatalogService(st)
	svc.now = func() time.Time { return time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC) }
	return svc, st
}

func TestCreateAcademicYear(t *testing.T) {
	svc, _ := newCatalog()
	ctx := context.Background()

	year, err := svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH1", Name: "2024-2025", StartDate: yearStart, EndDate: yearEnd})
	require.NoError(t, err)
	assert.False(t, year.IsCurrent)

	for _, name := range []string{"2024-2026", "2024/2025", "24-25", ""} {
		_, err := svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH1", Name: name, StartDate: yearStart, EndDate: yearEnd})
		assert.True(t, errors.Is(err, shared.ErrValidation), "name %q", name)
	}

	_, err = svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH1", Name: "2025-2026", StartDate: yearEnd, EndDate: yearStart})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH1", Name: "2024-2025", StartDate: yearStart, EndDate: yearEnd})
	assert.True(t, errors.Is(err, shared.ErrConflict))
}

func TestCreateTermAndSequence(t *testing.T) {
	svc, _ := newCatalog()
	ctx := context.Background()

	year, err := svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH1", Name: "2024-2025", StartDate: yearStart, EndDate: yearEnd})
	require.NoError(t, err)

	term, err := svc.CreateTerm(ctx, CreateTermRequest{
		SchoolID: "SCH1", AcademicYearID: year.ID, Name: "First Term", Order: 1,
		StartDate: yearStart, EndDate: time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, shared.StatusActive, term.Status)

	t.Run("duplicate term order", func(t *testing.T) {
		_, err := svc.CreateTerm(ctx, CreateTermRequest{
			SchoolID: "SCH1", AcademicYearID: year.ID, Name: "Again", Order: 1,
			StartDate: yearStart, EndDate: yearEnd,
		})
		assert.True(t, errors.Is(err, shared.ErrConflict))
	})

	t.Run("unknown year", func(t *testing.T) {
		_, err := svc.CreateTerm(ctx, CreateTermRequest{
			SchoolID: "SCH1", AcademicYearID: "YR_missing", Name: "Lost", Order: 2,
			StartDate: yearStart, EndDate: yearEnd,
		})
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	later := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	seq, err := svc.CreateSequence(ctx, CreateSequenceRequest{
		SchoolID: "SCH1", TermID: term.ID, Name: "Sequence 2", Order: 2,
		StartDate: later, EndDate: later.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, shared.StatusScheduled, seq.Status)
	assert.True(t, seq.IsActive)

	closed := false
	_, err = svc.CreateSequence(ctx, CreateSequenceRequest{
		SchoolID: "SCH1", TermID: term.ID, Name: "Sequence 1", Order: 1,
		StartDate: yearStart, EndDate: later, IsActive: &closed,
	})
	require.NoError(t, err)

	_, err = svc.CreateSequence(ctx, CreateSequenceRequest{
		SchoolID: "SCH1", TermID: term.ID, Name: "Dup", Order: 2,
		StartDate: later, EndDate: yearEnd,
	})
	assert.True(t, errors.Is(err, shared.ErrConflict))

	skeleton, err := svc.Skeleton(ctx, year.ID)
	require.NoError(t, err)
	require.Len(t, skeleton, 1)
	require.Len(t, skeleton[0].Sequences, 2)
	assert.Equal(t, 1, skeleton[0].Sequences[0].Order)
	assert.False(t, skeleton[0].Sequences[0].IsActive)
}

func TestSetCurrent_SingleCurrentPerSchool(t *testing.T) {
	svc, st := newCatalog()
	ctx := context.Background()

	y1, err := svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH1", Name: "2023-2024", StartDate: yearStart.AddDate(-1, 0, 0), EndDate: yearEnd.AddDate(-1, 0, 0)})
	require.NoError(t, err)
	y2, err := svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH1", Name: "2024-2025", StartDate: yearStart, EndDate: yearEnd})
	require.NoError(t, err)
	other, err := svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH2", Name: "2024-2025", StartDate: yearStart, EndDate: yearEnd})
	require.NoError(t, err)

	require.NoError(t, svc.SetCurrent(ctx, store.KindAcademicYear, other.ID))
	require.NoError(t, svc.SetCurrent(ctx, store.KindAcademicYear, y1.ID))
	require.NoError(t, svc.SetCurrent(ctx, store.KindAcademicYear, y2.ID))

	got1, _ := st.GetYearDetail(ctx, y1.ID)
	got2, _ := st.GetYearDetail(ctx, y2.ID)
	gotOther, _ := st.GetYearDetail(ctx, other.ID)
	assert.False(t, got1.IsCurrent)
	assert.True(t, got2.IsCurrent)
	assert.True(t, gotOther.IsCurrent)

	err = svc.SetCurrent(ctx, store.KindTerm, "TRM_missing")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestRefreshStatuses(t *testing.T) {
	svc, st := newCatalog()
	ctx := context.Background()

	year, err := svc.CreateAcademicYear(ctx, CreateYearRequest{SchoolID: "SCH1", Name: "2024-2025", StartDate: yearStart, EndDate: yearEnd})
	require.NoError(t, err)
	termEnd := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	term, err := svc.CreateTerm(ctx, CreateTermRequest{
		SchoolID: "SCH1", AcademicYearID: year.ID, Name: "First Term", Order: 1,
		StartDate: yearStart, EndDate: termEnd,
	})
	require.NoError(t, err)
	seqStart := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	seq, err := svc.CreateSequence(ctx, CreateSequenceRequest{
		SchoolID: "SCH1", TermID: term.ID, Name: "Sequence 2", Order: 2,
		StartDate: seqStart, EndDate: termEnd,
	})
	require.NoError(t, err)

	res, err := svc.RefreshStatuses(ctx, "SCH1", time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{}, res)

	res, err = svc.RefreshStatuses(ctx, "", time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{Sequences: 1}, res)
	got, _ := st.GetSequence(ctx, seq.ID)
	assert.Equal(t, shared.StatusActive, got.Status)

	res, err = svc.RefreshStatuses(ctx, "SCH1", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{Terms: 1, Sequences: 1}, res)
	gotTerm, _ := st.GetTerm(ctx, term.ID)
	assert.Equal(t, shared.StatusCompleted, gotTerm.Status)
}

func TestSetSequenceActive(t *testing.T) {
	svc, st := newCatalog()
	ctx := context.Background()
	require.NoError(t, st.InsertSequence(ctx, &shared.Sequence{ID: "S1", SchoolID: "SCH1", TermID: "T1", IsActive: true}))

	require.NoError(t, svc.SetSequenceActive(ctx, "S1", false))
	got, _ := st.GetSequence(ctx, "S1")
	assert.False(t, got.IsActive)

	assert.True(t, errors.Is(svc.SetSequenceActive(ctx, "S9", true), shared.ErrNotFound))
}
