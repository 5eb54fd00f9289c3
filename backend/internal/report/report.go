// ============================================================================
// backend/internal/report/report.go
// Cohort ranking workbook (xlsx)
// ============================================================================

package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/ranking"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

const overallSheet = "Overall"

// Source is what the report reads
type Source interface {
	store.AcademicYears
	GetStudent(ctx context.Context, id string) (*shared.Student, error)
	GetClass(ctx context.Context, id string) (*shared.Class, error)
	GetTerm(ctx context.Context, id string) (*shared.Term, error)
}

// Reporter renders cohort rankings. It ranks on the fly and never writes.
type Reporter struct {
	src Source
}

func NewReporter(src Source) *Reporter {
	return &Reporter{src: src}
}

// row is one student line of a sheet
type row struct {
	rank       int
	student    *shared.Student
	average    float64
	discipline string
	absences   int
	failing    bool
}

// CohortWorkbook builds a workbook with an "Overall" sheet and one sheet
// per term, each sorted by rank.
func (r *Reporter) CohortWorkbook(ctx context.Context, classID, year string) ([]byte, error) {
	if !shared.ValidYearName(year) {
		return nil, shared.Invalidf("year %q must be formatted YYYY-YYYY", year)
	}
	class, err := r.src.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	cohort, err := r.src.ListCohort(ctx, classID, year)
	if err != nil {
		return nil, err
	}

	students := make(map[string]*shared.Student, len(cohort))
	byRecord := make(map[string]*academic.AcademicYear, len(cohort))
	overall := make([]ranking.Entry, 0, len(cohort))
	for _, rec := range cohort {
		s, err := r.src.GetStudent(ctx, rec.StudentID)
		if err != nil {
			return nil, errors.Wrapf(err, "student of record %s", rec.ID)
		}
		students[rec.ID] = s
		byRecord[rec.ID] = rec
		overall = append(overall, ranking.Entry{RecordID: rec.ID, StudentID: rec.StudentID, Value: rec.OverallAverage()})
	}

	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the overall sheet
	if err := f.SetSheetName(f.GetSheetName(0), overallSheet); err != nil {
		return nil, err
	}
	var rows []row
	for _, rk := range ranking.CompetitionRanks(overall) {
		rec := byRecord[rk.RecordID]
		rows = append(rows, row{
			rank:       rk.Rank,
			student:    students[rk.RecordID],
			average:    rk.Value,
			discipline: rec.OverallStatus(),
			failing:    rec.HasFailingSubjects(),
		})
	}
	title := fmt.Sprintf("%s %s", class.Name, year)
	if err := writeSheet(f, overallSheet, title, rows); err != nil {
		return nil, err
	}

	for _, termID := range termIDs(cohort) {
		term, err := r.src.GetTerm(ctx, termID)
		if err != nil {
			return nil, err
		}
		var entries []ranking.Entry
		for _, rec := range cohort {
			if t := rec.FindTerm(termID); t != nil && t.IsActive {
				entries = append(entries, ranking.Entry{RecordID: rec.ID, StudentID: rec.StudentID, Value: t.Average})
			}
		}

		var rows []row
		for _, rk := range ranking.CompetitionRanks(entries) {
			t := byRecord[rk.RecordID].FindTerm(termID)
			rows = append(rows, row{
				rank:       rk.Rank,
				student:    students[rk.RecordID],
				average:    rk.Value,
				discipline: t.Discipline,
				absences:   absences(t),
			})
		}

		sheet := sheetName(term)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := writeSheet(f, sheet, fmt.Sprintf("%s %s", title, term.Name), rows); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to write workbook")
	}
	return buf.Bytes(), nil
}

var header = []interface{}{"Rank", "Matricule", "Student", "Average", "Discipline", "Absences", "Failing subjects"}

func writeSheet(f *excelize.File, sheet, title string, rows []row) error {
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		failing := "no"
		if r.failing {
			failing = "yes"
		}
		values := []interface{}{r.rank, r.student.Matricule, r.student.FullName(), r.average, r.discipline, r.absences, failing}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "C", "C", 28)
}

// termIDs lists term ids in first-seen order
func termIDs(cohort []*academic.AcademicYear) []string {
	seen := map[string]bool{}
	var ids []string
	for _, rec := range cohort {
		for _, t := range rec.Terms {
			if !seen[t.TermID] {
				seen[t.TermID] = true
				ids = append(ids, t.TermID)
			}
		}
	}
	return ids
}

func absences(t *academic.TermRecord) int {
	n := 0
	for _, s := range t.Sequences {
		n += s.Absences
	}
	return n
}

// sheetName keeps within the 31 character sheet name limit
func sheetName(t *shared.Term) string {
	name := fmt.Sprintf("%d %s", t.Order, t.Name)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
