// Package ranking assigns class ranks to academic year records at subject,
// sequence, term and year level.
package ranking

import (
	"sort"

	"school_grading/backend/internal/academic"
)

// Entry is one record's value for a ranked quantity
type Entry struct {
	RecordID  string  `json:"record_id"`
	StudentID string  `json:"student_id"`
	Value     float64 `json:"value"`
}

// Ranked is an Entry with its rank
type Ranked struct {
	Entry
	Rank int `json:"rank"`
}

// CompetitionRanks orders entries by value, highest first, and assigns
// standard competition ranks: equal values share a rank and the next value
// takes its 1-based position, so [18 15 15 10] ranks [1 2 2 4]. Equal values
// keep their input order.
func CompetitionRanks(entries []Entry) []Ranked {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	out := make([]Ranked, len(sorted))
	rank := 0
	for i, e := range sorted {
		if i == 0 || e.Value < sorted[i-1].Value {
			rank = i + 1
		}
		out[i] = Ranked{Entry: e, Rank: rank}
	}
	return out
}

// ============================================================================
// Collectors (which records take part, and with what value)
// ============================================================================

// subjectEntries collects graded marks of an active subject in an active
// sequence
func subjectEntries(cohort []*academic.AcademicYear, termID, sequenceID, subjectID string) []Entry {
	var out []Entry
	for _, rec := range cohort {
		seq := rec.FindSequence(termID, sequenceID)
		if seq == nil || !seq.IsActive {
			continue
		}
		sub := rec.FindSubject(termID, sequenceID, subjectID)
		if sub == nil || !sub.IsActive || !sub.Marks.IsActive {
			continue
		}
		out = append(out, Entry{RecordID: rec.ID, StudentID: rec.StudentID, Value: sub.Marks.CurrentMark})
	}
	return out
}

func sequenceEntries(cohort []*academic.AcademicYear, termID, sequenceID string) []Entry {
	var out []Entry
	for _, rec := range cohort {
		seq := rec.FindSequence(termID, sequenceID)
		if seq == nil || !seq.IsActive {
			continue
		}
		out = append(out, Entry{RecordID: rec.ID, StudentID: rec.StudentID, Value: seq.Average})
	}
	return out
}

func termEntries(cohort []*academic.AcademicYear, termID string) []Entry {
	var out []Entry
	for _, rec := range cohort {
		term := rec.FindTerm(termID)
		if term == nil || !term.IsActive {
			continue
		}
		out = append(out, Entry{RecordID: rec.ID, StudentID: rec.StudentID, Value: term.Average})
	}
	return out
}

func yearEntries(cohort []*academic.AcademicYear) []Entry {
	out := make([]Entry, 0, len(cohort))
	for _, rec := range cohort {
		out = append(out, Entry{RecordID: rec.ID, StudentID: rec.StudentID, Value: rec.OverallAverage()})
	}
	return out
}

// ============================================================================
// Stamping ranks back onto records
// ============================================================================

type cohortIndex []*academic.AcademicYear

func index(cohort []*academic.AcademicYear) cohortIndex {
	return cohortIndex(cohort)
}

func rankPtr(r int) *int { return &r }

// stamp writes each rank into the slot the locator finds on its record and
// clears the slot on every other record that holds it, so a record that
// dropped out of a ranking loses its old rank. It returns the records it
// changed.
func (idx cohortIndex) stamp(ranks []Ranked, slot func(*academic.AcademicYear) **int) []*academic.AcademicYear {
	byRecord := make(map[string]int, len(ranks))
	for _, r := range ranks {
		byRecord[r.RecordID] = r.Rank
	}

	var changed []*academic.AcademicYear
	for _, rec := range idx {
		p := slot(rec)
		if p == nil {
			continue
		}
		if r, ok := byRecord[rec.ID]; ok {
			*p = rankPtr(r)
			changed = append(changed, rec)
		} else if *p != nil {
			*p = nil
			changed = append(changed, rec)
		}
	}
	return changed
}

func (idx cohortIndex) stampSubject(termID, sequenceID, subjectID string, ranks []Ranked) []*academic.AcademicYear {
	return idx.stamp(ranks, func(rec *academic.AcademicYear) **int {
		if sub := rec.FindSubject(termID, sequenceID, subjectID); sub != nil {
			return &sub.Rank
		}
		return nil
	})
}

func (idx cohortIndex) stampSequence(termID, sequenceID string, ranks []Ranked) []*academic.AcademicYear {
	return idx.stamp(ranks, func(rec *academic.AcademicYear) **int {
		if seq := rec.FindSequence(termID, sequenceID); seq != nil {
			return &seq.Rank
		}
		return nil
	})
}

func (idx cohortIndex) stampTerm(termID string, ranks []Ranked) []*academic.AcademicYear {
	return idx.stamp(ranks, func(rec *academic.AcademicYear) **int {
		if term := rec.FindTerm(termID); term != nil {
			return &term.Rank
		}
		return nil
	})
}

func (idx cohortIndex) stampYear(ranks []Ranked) []*academic.AcademicYear {
	return idx.stamp(ranks, func(rec *academic.AcademicYear) **int {
		return &rec.Rank
	})
}
