package ranking

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/metrics"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

// Engine ranks a (class, year) cohort. Every call fetches the cohort fresh
// and saves each changed record on its own: a failed save leaves the other
// records ranked.
type Engine struct {
	store       store.AcademicYears
	concurrency int
	log         zerolog.Logger
}

// NewEngine creates an Engine that saves at most concurrency records at once
func NewEngine(st store.AcademicYears, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{store: st, concurrency: concurrency, log: shared.Logger("ranking")}
}

// SubjectRanks are the ranks of one subject in one sequence
type SubjectRanks struct {
	TermID     string   `json:"term_id"`
	SequenceID string   `json:"sequence_id"`
	SubjectID  string   `json:"subject_id"`
	Ranks      []Ranked `json:"ranks"`
}

// SequenceRanks are the ranks of one sequence average
type SequenceRanks struct {
	TermID     string   `json:"term_id"`
	SequenceID string   `json:"sequence_id"`
	Ranks      []Ranked `json:"ranks"`
}

// TermRanks are the ranks of one term average
type TermRanks struct {
	TermID string   `json:"term_id"`
	Ranks  []Ranked `json:"ranks"`
}

// AllRanks is the result of RankAll
type AllRanks struct {
	Subject  []Ranked `json:"subject"`
	Sequence []Ranked `json:"sequence"`
	Term     []Ranked `json:"term"`
	Year     []Ranked `json:"year"`
}

// CohortRanks is the result of RankCohort
type CohortRanks struct {
	ClassID   string          `json:"class_id"`
	Year      string          `json:"year"`
	Records   int             `json:"records"`
	Subjects  []SubjectRanks  `json:"subjects"`
	Sequences []SequenceRanks `json:"sequences"`
	Terms     []TermRanks     `json:"terms"`
	Overall   []Ranked        `json:"overall"`
}

func (e *Engine) cohort(ctx context.Context, classID, year string) ([]*academic.AcademicYear, error) {
	if classID == "" {
		return nil, shared.Invalidf("class id is required")
	}
	if !shared.ValidYearName(year) {
		return nil, shared.Invalidf("year %q must be formatted YYYY-YYYY", year)
	}
	return e.store.ListCohort(ctx, classID, year)
}

// RankSubject ranks the marks of one subject in one sequence
func (e *Engine) RankSubject(ctx context.Context, classID, year, termID, sequenceID, subjectID string) ([]Ranked, error) {
	defer metrics.ObserveRanking("subject", time.Now())

	cohort, err := e.cohort(ctx, classID, year)
	if err != nil {
		return nil, err
	}
	ranks := CompetitionRanks(subjectEntries(cohort, termID, sequenceID, subjectID))
	changed := index(cohort).stampSubject(termID, sequenceID, subjectID, ranks)
	return ranks, e.persist(ctx, "subject", changed)
}

// RankSequence ranks one sequence average
func (e *Engine) RankSequence(ctx context.Context, classID, year, termID, sequenceID string) ([]Ranked, error) {
	defer metrics.ObserveRanking("sequence", time.Now())

	cohort, err := e.cohort(ctx, classID, year)
	if err != nil {
		return nil, err
	}
	ranks := CompetitionRanks(sequenceEntries(cohort, termID, sequenceID))
	changed := index(cohort).stampSequence(termID, sequenceID, ranks)
	return ranks, e.persist(ctx, "sequence", changed)
}

// RankTerm ranks one term average
func (e *Engine) RankTerm(ctx context.Context, classID, year, termID string) ([]Ranked, error) {
	defer metrics.ObserveRanking("term", time.Now())

	cohort, err := e.cohort(ctx, classID, year)
	if err != nil {
		return nil, err
	}
	ranks := CompetitionRanks(termEntries(cohort, termID))
	changed := index(cohort).stampTerm(termID, ranks)
	return ranks, e.persist(ctx, "term", changed)
}

// RankYear ranks the overall average onto the record's top-level rank
func (e *Engine) RankYear(ctx context.Context, classID, year string) ([]Ranked, error) {
	defer metrics.ObserveRanking("year", time.Now())

	cohort, err := e.cohort(ctx, classID, year)
	if err != nil {
		return nil, err
	}
	ranks := CompetitionRanks(yearEntries(cohort))
	index(cohort).stampYear(ranks)
	return ranks, e.persist(ctx, "year", cohort)
}

// RankAll runs subject, sequence, term and year ranking over a single fetch
// of the cohort and saves each record once.
func (e *Engine) RankAll(ctx context.Context, classID, year, termID, sequenceID, subjectID string) (*AllRanks, error) {
	defer metrics.ObserveRanking("all", time.Now())

	cohort, err := e.cohort(ctx, classID, year)
	if err != nil {
		return nil, err
	}
	idx := index(cohort)

	out := &AllRanks{
		Subject:  CompetitionRanks(subjectEntries(cohort, termID, sequenceID, subjectID)),
		Sequence: CompetitionRanks(sequenceEntries(cohort, termID, sequenceID)),
		Term:     CompetitionRanks(termEntries(cohort, termID)),
		Year:     CompetitionRanks(yearEntries(cohort)),
	}
	idx.stampSubject(termID, sequenceID, subjectID, out.Subject)
	idx.stampSequence(termID, sequenceID, out.Sequence)
	idx.stampTerm(termID, out.Term)
	idx.stampYear(out.Year)

	return out, e.persist(ctx, "all", cohort)
}

// RankCohort ranks every subject, sequence and term present anywhere in the
// cohort, plus the overall average.
func (e *Engine) RankCohort(ctx context.Context, classID, year string) (*CohortRanks, error) {
	defer metrics.ObserveRanking("cohort", time.Now())

	cohort, err := e.cohort(ctx, classID, year)
	if err != nil {
		return nil, err
	}
	idx := index(cohort)
	slots := collectSlots(cohort)

	out := &CohortRanks{
		ClassID:   classID,
		Year:      year,
		Records:   len(cohort),
		Subjects:  []SubjectRanks{},
		Sequences: []SequenceRanks{},
		Terms:     []TermRanks{},
	}

	for _, t := range slots {
		for _, s := range t.sequences {
			for _, subjectID := range s.subjects {
				ranks := CompetitionRanks(subjectEntries(cohort, t.id, s.id, subjectID))
				idx.stampSubject(t.id, s.id, subjectID, ranks)
				out.Subjects = append(out.Subjects, SubjectRanks{TermID: t.id, SequenceID: s.id, SubjectID: subjectID, Ranks: ranks})
			}
			ranks := CompetitionRanks(sequenceEntries(cohort, t.id, s.id))
			idx.stampSequence(t.id, s.id, ranks)
			out.Sequences = append(out.Sequences, SequenceRanks{TermID: t.id, SequenceID: s.id, Ranks: ranks})
		}
		ranks := CompetitionRanks(termEntries(cohort, t.id))
		idx.stampTerm(t.id, ranks)
		out.Terms = append(out.Terms, TermRanks{TermID: t.id, Ranks: ranks})
	}

	out.Overall = CompetitionRanks(yearEntries(cohort))
	idx.stampYear(out.Overall)

	if err := e.persist(ctx, "cohort", cohort); err != nil {
		return out, err
	}

	e.log.Info().
		Str("class_id", classID).
		Str("year", year).
		Int("records", len(cohort)).
		Int("subject_rankings", len(out.Subjects)).
		Msg("cohort ranked")
	return out, nil
}

// ============================================================================
// Slot discovery
// ============================================================================

type sequenceSlot struct {
	id       string
	subjects []string
}

type termSlot struct {
	id        string
	sequences []*sequenceSlot
}

// collectSlots lists every term, sequence and subject present in the cohort
// in first-seen order.
func collectSlots(cohort []*academic.AcademicYear) []*termSlot {
	var terms []*termSlot
	termByID := map[string]*termSlot{}
	seqByKey := map[string]*sequenceSlot{}
	subSeen := map[string]bool{}

	for _, rec := range cohort {
		for _, t := range rec.Terms {
			ts, ok := termByID[t.TermID]
			if !ok {
				ts = &termSlot{id: t.TermID}
				termByID[t.TermID] = ts
				terms = append(terms, ts)
			}
			for _, s := range t.Sequences {
				seqKey := t.TermID + "/" + s.SequenceID
				ss, ok := seqByKey[seqKey]
				if !ok {
					ss = &sequenceSlot{id: s.SequenceID}
					seqByKey[seqKey] = ss
					ts.sequences = append(ts.sequences, ss)
				}
				for _, sub := range s.Subjects {
					subKey := seqKey + "/" + sub.SubjectID
					if !subSeen[subKey] {
						subSeen[subKey] = true
						ss.subjects = append(ss.subjects, sub.SubjectID)
					}
				}
			}
		}
	}
	return terms
}

// ============================================================================
// Persistence
// ============================================================================

// persist saves records with bounded concurrency. Saves are independent:
// one failure does not stop or undo the others.
func (e *Engine) persist(ctx context.Context, scope string, records []*academic.AcademicYear) error {
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	var failed int64
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			err := e.store.SaveYear(ctx, rec)
			metrics.RankedRecords.WithLabelValues(scope, metrics.Result(err)).Inc()
			if err != nil {
				atomic.AddInt64(&failed, 1)
				e.log.Error().Err(err).Str("record_id", rec.ID).Str("scope", scope).Msg("failed to save ranked record")
				return errors.Wrapf(err, "save record %s", rec.ID)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return errors.Wrapf(err, "%d of %d ranked records not saved", failed, len(records))
	}
	return nil
}
