package store

import (
	"context"
	"sort"
	"sync"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/shared"
)

type memoryState struct {
	students  map[string]shared.Student
	classes   map[string]shared.Class
	subjects  map[string]shared.Subject
	years     map[string]shared.AcademicYearDetail
	terms     map[string]shared.Term
	sequences map[string]shared.Sequence
	records   map[string]*academic.AcademicYear
}

func newMemoryState() memoryState {
	return memoryState{
		students:  map[string]shared.Student{},
		classes:   map[string]shared.Class{},
		subjects:  map[string]shared.Subject{},
		years:     map[string]shared.AcademicYearDetail{},
		terms:     map[string]shared.Term{},
		sequences: map[string]shared.Sequence{},
		records:   map[string]*academic.AcademicYear{},
	}
}

func (s memoryState) clone() memoryState {
	c := newMemoryState()
	for k, v := range s.students {
		v.AcademicYears = append([]string{}, v.AcademicYears...)
		c.students[k] = v
	}
	for k, v := range s.classes {
		c.classes[k] = cloneClass(v)
	}
	for k, v := range s.subjects {
		c.subjects[k] = v
	}
	for k, v := range s.years {
		c.years[k] = v
	}
	for k, v := range s.terms {
		c.terms[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v.Clone()
	}
	return c
}

func cloneClass(c shared.Class) shared.Class {
	c.Subjects = append([]shared.ClassSubject{}, c.Subjects...)
	c.StudentList = append([]string{}, c.StudentList...)
	return c
}

// MemoryStore is an in-process Store. Transactions are serialized and roll
// back by restoring a snapshot taken when they began; writes made outside a
// transaction while one is running are lost if it rolls back.
type MemoryStore struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state memoryState

	// FailSaveYear, when set, is returned by SaveYear for matching records.
	FailSaveYear func(y *academic.AcademicYear) error
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// WithTransaction implements Transactor
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.state.clone()
	m.mu.RUnlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// ============================================================================
// Students
// ============================================================================

func (m *MemoryStore) InsertStudent(_ context.Context, s *shared.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.students[s.ID]; ok {
		return shared.Conflictf("student %s", s.ID)
	}
	c := *s
	c.AcademicYears = append([]string{}, s.AcademicYears...)
	m.state.students[s.ID] = c
	return nil
}

func (m *MemoryStore) GetStudent(_ context.Context, id string) (*shared.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.state.students[id]
	if !ok {
		return nil, shared.NotFoundf("student %s", id)
	}
	s.AcademicYears = append([]string{}, s.AcademicYears...)
	return &s, nil
}

func (m *MemoryStore) SetStudentClass(_ context.Context, studentID, classID string) error {
	return m.updateStudent(studentID, func(s *shared.Student) { s.ClassID = classID })
}

func (m *MemoryStore) AddStudentYear(_ context.Context, studentID, recordID string) error {
	return m.updateStudent(studentID, func(s *shared.Student) { s.AcademicYears = addToSet(s.AcademicYears, recordID) })
}

func (m *MemoryStore) RemoveStudentYear(_ context.Context, studentID, recordID string) error {
	return m.updateStudent(studentID, func(s *shared.Student) { s.AcademicYears = pull(s.AcademicYears, recordID) })
}

func (m *MemoryStore) updateStudent(id string, fn func(s *shared.Student)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.students[id]
	if !ok {
		return shared.NotFoundf("student %s", id)
	}
	fn(&s)
	m.state.students[id] = s
	return nil
}

// ============================================================================
// Classes
// ============================================================================

func (m *MemoryStore) InsertClass(_ context.Context, c *shared.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.classes[c.ID]; ok {
		return shared.Conflictf("class %s", c.ID)
	}
	m.state.classes[c.ID] = cloneClass(*c)
	return nil
}

func (m *MemoryStore) GetClass(_ context.Context, id string) (*shared.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.state.classes[id]
	if !ok {
		return nil, shared.NotFoundf("class %s", id)
	}
	c = cloneClass(c)
	return &c, nil
}

func (m *MemoryStore) UpdateClassSubjects(_ context.Context, classID string, subjects []shared.ClassSubject) error {
	return m.updateClass(classID, func(c *shared.Class) {
		c.Subjects = append([]shared.ClassSubject{}, subjects...)
	})
}

func (m *MemoryStore) AddToRoster(_ context.Context, classID, recordID string) error {
	return m.updateClass(classID, func(c *shared.Class) { c.StudentList = addToSet(c.StudentList, recordID) })
}

func (m *MemoryStore) RemoveFromRoster(_ context.Context, classID, recordID string) error {
	return m.updateClass(classID, func(c *shared.Class) { c.StudentList = pull(c.StudentList, recordID) })
}

func (m *MemoryStore) updateClass(id string, fn func(c *shared.Class)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.classes[id]
	if !ok {
		return shared.NotFoundf("class %s", id)
	}
	fn(&c)
	m.state.classes[id] = c
	return nil
}

// ============================================================================
// Catalog
// ============================================================================

func (m *MemoryStore) InsertSubject(_ context.Context, s *shared.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.subjects[s.ID]; ok {
		return shared.Conflictf("subject %s", s.ID)
	}
	m.state.subjects[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSubject(_ context.Context, id string) (*shared.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.state.subjects[id]
	if !ok {
		return nil, shared.NotFoundf("subject %s", id)
	}
	return &s, nil
}

func (m *MemoryStore) ListSubjects(_ context.Context, ids []string) ([]*shared.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*shared.Subject, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.state.subjects[id]; ok {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertYearDetail(_ context.Context, d *shared.AcademicYearDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.years {
		if existing.SchoolID == d.SchoolID && existing.Name == d.Name {
			return shared.Conflictf("academic year %s already exists", d.Name)
		}
	}
	m.state.years[d.ID] = *d
	return nil
}

func (m *MemoryStore) GetYearDetail(_ context.Context, id string) (*shared.AcademicYearDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.state.years[id]
	if !ok {
		return nil, shared.NotFoundf("academic year %s", id)
	}
	return &d, nil
}

func (m *MemoryStore) FindYearDetail(_ context.Context, schoolID, name string) (*shared.AcademicYearDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.state.years {
		if d.SchoolID == schoolID && d.Name == name {
			return &d, nil
		}
	}
	return nil, shared.NotFoundf("academic year %s", name)
}

func (m *MemoryStore) InsertTerm(_ context.Context, t *shared.Term) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.terms[t.ID] = *t
	return nil
}

func (m *MemoryStore) GetTerm(_ context.Context, id string) (*shared.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.state.terms[id]
	if !ok {
		return nil, shared.NotFoundf("term %s", id)
	}
	return &t, nil
}

func (m *MemoryStore) ListTerms(_ context.Context, academicYearID string) ([]*shared.Term, error) {
	return m.filterTerms(func(t shared.Term) bool { return t.AcademicYearID == academicYearID }), nil
}

func (m *MemoryStore) ListSchoolTerms(_ context.Context, schoolID string) ([]*shared.Term, error) {
	return m.filterTerms(func(t shared.Term) bool { return schoolID == "" || t.SchoolID == schoolID }), nil
}

func (m *MemoryStore) filterTerms(keep func(shared.Term) bool) []*shared.Term {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*shared.Term{}
	for _, t := range m.state.terms {
		if keep(t) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (m *MemoryStore) InsertSequence(_ context.Context, s *shared.Sequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.sequences[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSequence(_ context.Context, id string) (*shared.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.state.sequences[id]
	if !ok {
		return nil, shared.NotFoundf("sequence %s", id)
	}
	return &s, nil
}

func (m *MemoryStore) ListSequences(_ context.Context, termID string) ([]*shared.Sequence, error) {
	return m.filterSequences(func(s shared.Sequence) bool { return s.TermID == termID }), nil
}

func (m *MemoryStore) ListSchoolSequences(_ context.Context, schoolID string) ([]*shared.Sequence, error) {
	return m.filterSequences(func(s shared.Sequence) bool { return schoolID == "" || s.SchoolID == schoolID }), nil
}

func (m *MemoryStore) filterSequences(keep func(shared.Sequence) bool) []*shared.Sequence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*shared.Sequence{}
	for _, s := range m.state.sequences {
		if keep(s) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (m *MemoryStore) ClearCurrent(_ context.Context, kind Kind, schoolID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case KindAcademicYear:
		for id, d := range m.state.years {
			if d.SchoolID == schoolID {
				d.IsCurrent = false
				m.state.years[id] = d
			}
		}
	case KindTerm:
		for id, t := range m.state.terms {
			if t.SchoolID == schoolID {
				t.IsCurrent = false
				m.state.terms[id] = t
			}
		}
	case KindSequence:
		for id, s := range m.state.sequences {
			if s.SchoolID == schoolID {
				s.IsCurrent = false
				m.state.sequences[id] = s
			}
		}
	default:
		return shared.Invalidf("unknown period kind %q", kind)
	}
	return nil
}

func (m *MemoryStore) MarkCurrent(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case KindAcademicYear:
		d, ok := m.state.years[id]
		if !ok {
			return shared.NotFoundf("academic year %s", id)
		}
		d.IsCurrent = true
		m.state.years[id] = d
	case KindTerm:
		t, ok := m.state.terms[id]
		if !ok {
			return shared.NotFoundf("term %s", id)
		}
		t.IsCurrent = true
		m.state.terms[id] = t
	case KindSequence:
		s, ok := m.state.sequences[id]
		if !ok {
			return shared.NotFoundf("sequence %s", id)
		}
		s.IsCurrent = true
		m.state.sequences[id] = s
	default:
		return shared.Invalidf("unknown period kind %q", kind)
	}
	return nil
}

func (m *MemoryStore) SetStatus(_ context.Context, kind Kind, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case KindTerm:
		t, ok := m.state.terms[id]
		if !ok {
			return shared.NotFoundf("term %s", id)
		}
		t.Status = status
		m.state.terms[id] = t
	case KindSequence:
		s, ok := m.state.sequences[id]
		if !ok {
			return shared.NotFoundf("sequence %s", id)
		}
		s.Status = status
		m.state.sequences[id] = s
	default:
		return shared.Invalidf("%q has no status", kind)
	}
	return nil
}

func (m *MemoryStore) SetSequenceActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.sequences[id]
	if !ok {
		return shared.NotFoundf("sequence %s", id)
	}
	s.IsActive = active
	m.state.sequences[id] = s
	return nil
}

// ============================================================================
// Academic year records
// ============================================================================

func (m *MemoryStore) InsertYear(_ context.Context, y *academic.AcademicYear) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.state.records {
		if r.StudentID == y.StudentID && r.Year == y.Year && r.SchoolID == y.SchoolID {
			return shared.Conflictf("student %s already has a record for %s", y.StudentID, y.Year)
		}
	}
	m.state.records[y.ID] = y.Clone()
	return nil
}

func (m *MemoryStore) GetYear(_ context.Context, id string) (*academic.AcademicYear, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	y, ok := m.state.records[id]
	if !ok {
		return nil, shared.NotFoundf("academic year record %s", id)
	}
	return y.Clone(), nil
}

func (m *MemoryStore) FindYear(_ context.Context, studentID, year, schoolID string) (*academic.AcademicYear, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.state.records {
		if r.StudentID == studentID && r.Year == year && r.SchoolID == schoolID {
			return r.Clone(), nil
		}
	}
	return nil, shared.NotFoundf("record for student %s in %s", studentID, year)
}

func (m *MemoryStore) SaveYear(_ context.Context, y *academic.AcademicYear) error {
	if m.FailSaveYear != nil {
		if err := m.FailSaveYear(y); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.records[y.ID]; !ok {
		return shared.NotFoundf("academic year record %s", y.ID)
	}
	m.state.records[y.ID] = y.Clone()
	return nil
}

func (m *MemoryStore) SetYearClass(_ context.Context, id, classID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	y, ok := m.state.records[id]
	if !ok {
		return shared.NotFoundf("academic year record %s", id)
	}
	y.ClassID = classID
	return nil
}

func (m *MemoryStore) DeleteYear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.records[id]; !ok {
		return shared.NotFoundf("academic year record %s", id)
	}
	delete(m.state.records, id)
	return nil
}

func (m *MemoryStore) ListCohort(_ context.Context, classID, year string) ([]*academic.AcademicYear, error) {
	return m.filterRecords(func(y *academic.AcademicYear) bool { return y.ClassID == classID && y.Year == year }), nil
}

func (m *MemoryStore) ListSchoolYear(_ context.Context, schoolID, year string) ([]*academic.AcademicYear, error) {
	return m.filterRecords(func(y *academic.AcademicYear) bool { return y.SchoolID == schoolID && y.Year == year }), nil
}

func (m *MemoryStore) ListStudentYears(_ context.Context, studentID string) ([]*academic.AcademicYear, error) {
	return m.filterRecords(func(y *academic.AcademicYear) bool { return y.StudentID == studentID }), nil
}

func (m *MemoryStore) filterRecords(keep func(*academic.AcademicYear) bool) []*academic.AcademicYear {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*academic.AcademicYear{}
	for _, y := range m.state.records {
		if keep(y) {
			out = append(out, y.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// ============================================================================
// Set helpers
// ============================================================================

func addToSet(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func pull(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
