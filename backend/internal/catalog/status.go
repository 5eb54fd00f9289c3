package catalog

import (
	"context"
	"time"

	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

// StatusKind selects the pending status a period starts in
type StatusKind int

const (
	KindTermStatus StatusKind = iota
	KindSequenceStatus
)

// StatusAt is the status of a period at now: upcoming (terms) or scheduled
// (sequences) before start, active within, completed after end.
func StatusAt(kind StatusKind, start, end, now time.Time) string {
	pending := shared.StatusUpcoming
	if kind == KindSequenceStatus {
		pending = shared.StatusScheduled
	}
	return shared.PeriodStatus(start, end, now, pending)
}

// RefreshResult counts persisted status transitions
type RefreshResult struct {
	Terms     int `json:"terms"`
	Sequences int `json:"sequences"`
}

// RefreshStatuses recomputes the status of every term and sequence of
// schoolID (all schools when empty) and persists the ones that changed.
func (s *CatalogService) RefreshStatuses(ctx context.Context, schoolID string, now time.Time) (RefreshResult, error) {
	var res RefreshResult

	terms, err := s.store.ListSchoolTerms(ctx, schoolID)
	if err != nil {
		return res, err
	}
	for _, t := range terms {
		next := StatusAt(KindTermStatus, t.StartDate, t.EndDate, now)
		if next == t.Status {
			continue
		}
		if err := s.store.SetStatus(ctx, store.KindTerm, t.ID, next); err != nil {
			return res, err
		}
		res.Terms++
	}

	seqs, err := s.store.ListSchoolSequences(ctx, schoolID)
	if err != nil {
		return res, err
	}
	for _, seq := range seqs {
		next := StatusAt(KindSequenceStatus, seq.StartDate, seq.EndDate, now)
		if next == seq.Status {
			continue
		}
		if err := s.store.SetStatus(ctx, store.KindSequence, seq.ID, next); err != nil {
			return res, err
		}
		res.Sequences++
	}

	if res.Terms > 0 || res.Sequences > 0 {
		s.log.Info().Str("school_id", schoolID).Int("terms", res.Terms).Int("sequences", res.Sequences).Msg("period statuses refreshed")
	}
	return res, nil
}
