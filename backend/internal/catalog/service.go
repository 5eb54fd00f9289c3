// ============================================================================
// backend/internal/catalog/service.go
// Subjects and the academic calendar (years, terms, sequences)
// ============================================================================

package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

// CatalogService manages subjects and the calendar of a school
type CatalogService struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewCatalogService creates a new CatalogService instance
func NewCatalogService(st store.Store) *CatalogService {
	return &CatalogService{store: st, log: shared.Logger("catalog"), now: time.Now}
}

// ============================================================================
// Requests
// ============================================================================

type CreateSubjectRequest struct {
	SchoolID string `json:"school_id" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

type CreateYearRequest struct {
	SchoolID  string    `json:"school_id" validate:"required"`
	Name      string    `json:"name" validate:"required,yearname"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

type CreateTermRequest struct {
	SchoolID       string    `json:"school_id" validate:"required"`
	AcademicYearID string    `json:"academic_year_id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Order          int       `json:"order" validate:"gte=1"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
}

type CreateSequenceRequest struct {
	SchoolID  string    `json:"school_id" validate:"required"`
	TermID    string    `json:"term_id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Order     int       `json:"order" validate:"gte=1"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsActive  *bool     `json:"is_active,omitempty"` // defaults to true
}

func checkRange(start, end time.Time) error {
	if !start.Before(end) {
		return shared.Invalidf("start_date must be before end_date")
	}
	return nil
}

// ============================================================================
// Creation
// ============================================================================

// CreateSubject adds an active subject to the catalog
func (s *CatalogService) CreateSubject(ctx context.Context, req CreateSubjectRequest) (*shared.Subject, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}

	subject := &shared.Subject{
		ID:        shared.GenerateID("SUB"),
		SchoolID:  req.SchoolID,
		Code:      req.Code,
		Name:      req.Name,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertSubject(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// CreateAcademicYear adds a year shell. Names are YYYY-YYYY with consecutive
// years and are unique per school.
func (s *CatalogService) CreateAcademicYear(ctx context.Context, req CreateYearRequest) (*shared.AcademicYearDetail, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := checkRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	detail := &shared.AcademicYearDetail{
		ID:        shared.GenerateID("YR"),
		SchoolID:  req.SchoolID,
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertYearDetail(ctx, detail); err != nil {
		return nil, err
	}

	s.log.Info().Str("school_id", detail.SchoolID).Str("year", detail.Name).Msg("academic year created")
	return detail, nil
}

// CreateTerm adds a term to an existing year. Order is unique within the year.
func (s *CatalogService) CreateTerm(ctx context.Context, req CreateTermRequest) (*shared.Term, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := checkRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	year, err := s.store.GetYearDetail(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}
	if year.SchoolID != req.SchoolID {
		return nil, shared.NotFoundf("academic year %s", req.AcademicYearID)
	}

	siblings, err := s.store.ListTerms(ctx, year.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range siblings {
		if t.Order == req.Order {
			return nil, shared.Conflictf("term order %d already used in %s", req.Order, year.Name)
		}
	}

	now := s.now()
	term := &shared.Term{
		ID:             shared.GenerateID("TRM"),
		SchoolID:       req.SchoolID,
		AcademicYearID: year.ID,
		Name:           req.Name,
		Order:          req.Order,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         StatusAt(KindTermStatus, req.StartDate, req.EndDate, now),
		CreatedAt:      now,
	}
	if err := s.store.InsertTerm(ctx, term); err != nil {
		return nil, err
	}
	return term, nil
}

// CreateSequence adds a sequence to an existing term. Order is unique within
// the term.
func (s *CatalogService) CreateSequence(ctx context.Context, req CreateSequenceRequest) (*shared.Sequence, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := checkRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	term, err := s.store.GetTerm(ctx, req.TermID)
	if err != nil {
		return nil, err
	}
	if term.SchoolID != req.SchoolID {
		return nil, shared.NotFoundf("term %s", req.TermID)
	}

	siblings, err := s.store.ListSequences(ctx, term.ID)
	if err != nil {
		return nil, err
	}
	for _, seq := range siblings {
		if seq.Order == req.Order {
			return nil, shared.Conflictf("sequence order %d already used in %s", req.Order, term.Name)
		}
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := s.now()
	seq := &shared.Sequence{
		ID:        shared.GenerateID("SEQ"),
		SchoolID:  req.SchoolID,
		TermID:    term.ID,
		Name:      req.Name,
		Order:     req.Order,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    StatusAt(KindSequenceStatus, req.StartDate, req.EndDate, now),
		IsActive:  active,
		CreatedAt: now,
	}
	if err := s.store.InsertSequence(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// ============================================================================
// Current period
// ============================================================================

// SetCurrent makes id the only current period of its kind in its school.
// The clear and the set happen in one transaction.
func (s *CatalogService) SetCurrent(ctx context.Context, kind store.Kind, id string) error {
	schoolID, err := s.schoolOf(ctx, kind, id)
	if err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.ClearCurrent(ctx, kind, schoolID); err != nil {
			return err
		}
		return s.store.MarkCurrent(ctx, kind, id)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("kind", string(kind)).Str("id", id).Str("school_id", schoolID).Msg("current period set")
	return nil
}

func (s *CatalogService) schoolOf(ctx context.Context, kind store.Kind, id string) (string, error) {
	switch kind {
	case store.KindAcademicYear:
		d, err := s.store.GetYearDetail(ctx, id)
		if err != nil {
			return "", err
		}
		return d.SchoolID, nil
	case store.KindTerm:
		t, err := s.store.GetTerm(ctx, id)
		if err != nil {
			return "", err
		}
		return t.SchoolID, nil
	case store.KindSequence:
		seq, err := s.store.GetSequence(ctx, id)
		if err != nil {
			return "", err
		}
		return seq.SchoolID, nil
	}
	return "", shared.Invalidf("unknown period kind %q", kind)
}

// SetSequenceActive opens or closes a sequence for mark entry
func (s *CatalogService) SetSequenceActive(ctx context.Context, id string, active bool) error {
	if err := s.store.SetSequenceActive(ctx, id, active); err != nil {
		return err
	}
	s.log.Info().Str("sequence_id", id).Bool("active", active).Msg("sequence mark entry toggled")
	return nil
}

// ============================================================================
// Calendar skeleton
// ============================================================================

// TermSkeleton is a term with its sequences, in order
type TermSkeleton struct {
	Term      *shared.Term       `json:"term"`
	Sequences []*shared.Sequence `json:"sequences"`
}

// Skeleton returns the terms and sequences of a year detail, in order
func (s *CatalogService) Skeleton(ctx context.Context, academicYearID string) ([]TermSkeleton, error) {
	terms, err := s.store.ListTerms(ctx, academicYearID)
	if err != nil {
		return nil, err
	}

	out := make([]TermSkeleton, 0, len(terms))
	for _, t := range terms {
		seqs, err := s.store.ListSequences(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, TermSkeleton{Term: t, Sequences: seqs})
	}
	return out, nil
}
