// ============================================================================
// backend/internal/store/mongo.go
// MongoDB implementation of Store
// ============================================================================

package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/shared"
)

const queryTimeout = 10 * time.Second

// MongoStore implements Store on a MongoDB database
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger

	studentsCol  *mongo.Collection
	classesCol   *mongo.Collection
	subjectsCol  *mongo.Collection
	yearsCol     *mongo.Collection
	termsCol     *mongo.Collection
	sequencesCol *mongo.Collection
	recordsCol   *mongo.Collection
}

// NewMongoStore creates a new MongoStore instance
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:       client,
		db:           db,
		log:          shared.Logger("store"),
		studentsCol:  db.Collection("students"),
		classesCol:   db.Collection("classes"),
		subjectsCol:  db.Collection("subjects"),
		yearsCol:     db.Collection(string(KindAcademicYear)),
		termsCol:     db.Collection(string(KindTerm)),
		sequencesCol: db.Collection(string(KindSequence)),
		recordsCol:   db.Collection("academic_years"),
	}
}

// EnsureIndexes creates the uniqueness and lookup indexes
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.recordsCol: {
			{
				Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "year", Value: 1}, {Key: "school_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "class_id", Value: 1}, {Key: "year", Value: 1}}},
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "year", Value: 1}}},
		},
		m.yearsCol: {
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		m.termsCol: {
			{
				Keys:    bson.D{{Key: "academic_year_id", Value: 1}, {Key: "order", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		m.sequencesCol: {
			{
				Keys:    bson.D{{Key: "term_id", Value: 1}, {Key: "order", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for col, models := range indexes {
		if _, err := col.Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "create indexes on %s", col.Name())
		}
	}
	m.log.Info().Msg("indexes ensured")
	return nil
}

// WithTransaction runs fn in a multi-document transaction. The ctx handed to
// fn is the session context.
func (m *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return shared.WithTransaction(ctx, m.client, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

// ============================================================================
// Generic helpers
// ============================================================================

func findOne(ctx context.Context, col *mongo.Collection, filter bson.M, out interface{}, what string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := col.FindOne(queryCtx, filter).Decode(out)
	if err == mongo.ErrNoDocuments {
		return shared.NotFoundf("%s", what)
	}
	return errors.Wrapf(err, "find %s", what)
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]*T, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := col.Find(queryCtx, filter, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", col.Name())
	}
	defer cursor.Close(queryCtx)

	out := []*T{}
	for cursor.Next(queryCtx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrapf(err, "decode %s", col.Name())
		}
		out = append(out, &doc)
	}
	return out, errors.Wrapf(cursor.Err(), "iterate %s", col.Name())
}

func insertOne(ctx context.Context, col *mongo.Collection, doc interface{}, what string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := col.InsertOne(queryCtx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.Conflictf("%s already exists", what)
		}
		return errors.Wrapf(err, "insert %s", what)
	}
	return nil
}

func updateOne(ctx context.Context, col *mongo.Collection, id string, update bson.M, what string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := col.UpdateOne(queryCtx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.Wrapf(err, "update %s", what)
	}
	if res.MatchedCount == 0 {
		return shared.NotFoundf("%s", what)
	}
	return nil
}

// schoolFilter matches every school when schoolID is empty
func schoolFilter(schoolID string) bson.M {
	if schoolID == "" {
		return bson.M{}
	}
	return bson.M{"school_id": schoolID}
}

func byOrder() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
}

// ============================================================================
// Students
// ============================================================================

func (m *MongoStore) InsertStudent(ctx context.Context, s *shared.Student) error {
	if s.AcademicYears == nil {
		s.AcademicYears = []string{}
	}
	return insertOne(ctx, m.studentsCol, s, "student "+s.ID)
}

func (m *MongoStore) GetStudent(ctx context.Context, id string) (*shared.Student, error) {
	var s shared.Student
	if err := findOne(ctx, m.studentsCol, bson.M{"_id": id}, &s, "student "+id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MongoStore) SetStudentClass(ctx context.Context, studentID, classID string) error {
	return updateOne(ctx, m.studentsCol, studentID, bson.M{
		"$set": bson.M{"class_id": classID, "updated_at": time.Now()},
	}, "student "+studentID)
}

func (m *MongoStore) AddStudentYear(ctx context.Context, studentID, recordID string) error {
	return updateOne(ctx, m.studentsCol, studentID, bson.M{
		"$addToSet": bson.M{"academic_years": recordID},
	}, "student "+studentID)
}

func (m *MongoStore) RemoveStudentYear(ctx context.Context, studentID, recordID string) error {
	return updateOne(ctx, m.studentsCol, studentID, bson.M{
		"$pull": bson.M{"academic_years": recordID},
	}, "student "+studentID)
}

// ============================================================================
// Classes
// ============================================================================

func (m *MongoStore) InsertClass(ctx context.Context, c *shared.Class) error {
	if c.Subjects == nil {
		c.Subjects = []shared.ClassSubject{}
	}
	if c.StudentList == nil {
		c.StudentList = []string{}
	}
	return insertOne(ctx, m.classesCol, c, "class "+c.ID)
}

func (m *MongoStore) GetClass(ctx context.Context, id string) (*shared.Class, error) {
	var c shared.Class
	if err := findOne(ctx, m.classesCol, bson.M{"_id": id}, &c, "class "+id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *MongoStore) UpdateClassSubjects(ctx context.Context, classID string, subjects []shared.ClassSubject) error {
	return updateOne(ctx, m.classesCol, classID, bson.M{
		"$set": bson.M{"subjects": subjects, "updated_at": time.Now()},
	}, "class "+classID)
}

func (m *MongoStore) AddToRoster(ctx context.Context, classID, recordID string) error {
	return updateOne(ctx, m.classesCol, classID, bson.M{
		"$addToSet": bson.M{"student_list": recordID},
	}, "class "+classID)
}

func (m *MongoStore) RemoveFromRoster(ctx context.Context, classID, recordID string) error {
	return updateOne(ctx, m.classesCol, classID, bson.M{
		"$pull": bson.M{"student_list": recordID},
	}, "class "+classID)
}

// ============================================================================
// Catalog
// ============================================================================

func (m *MongoStore) InsertSubject(ctx context.Context, s *shared.Subject) error {
	return insertOne(ctx, m.subjectsCol, s, "subject "+s.ID)
}

func (m *MongoStore) GetSubject(ctx context.Context, id string) (*shared.Subject, error) {
	var s shared.Subject
	if err := findOne(ctx, m.subjectsCol, bson.M{"_id": id}, &s, "subject "+id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MongoStore) ListSubjects(ctx context.Context, ids []string) ([]*shared.Subject, error) {
	return findMany[shared.Subject](ctx, m.subjectsCol, bson.M{"_id": bson.M{"$in": ids}}, nil)
}

func (m *MongoStore) InsertYearDetail(ctx context.Context, d *shared.AcademicYearDetail) error {
	return insertOne(ctx, m.yearsCol, d, "academic year "+d.Name)
}

func (m *MongoStore) GetYearDetail(ctx context.Context, id string) (*shared.AcademicYearDetail, error) {
	var d shared.AcademicYearDetail
	if err := findOne(ctx, m.yearsCol, bson.M{"_id": id}, &d, "academic year "+id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *MongoStore) FindYearDetail(ctx context.Context, schoolID, name string) (*shared.AcademicYearDetail, error) {
	var d shared.AcademicYearDetail
	if err := findOne(ctx, m.yearsCol, bson.M{"school_id": schoolID, "name": name}, &d, "academic year "+name); err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *MongoStore) InsertTerm(ctx context.Context, t *shared.Term) error {
	return insertOne(ctx, m.termsCol, t, "term "+t.Name)
}

func (m *MongoStore) GetTerm(ctx context.Context, id string) (*shared.Term, error) {
	var t shared.Term
	if err := findOne(ctx, m.termsCol, bson.M{"_id": id}, &t, "term "+id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (m *MongoStore) ListTerms(ctx context.Context, academicYearID string) ([]*shared.Term, error) {
	return findMany[shared.Term](ctx, m.termsCol, bson.M{"academic_year_id": academicYearID}, byOrder())
}

func (m *MongoStore) ListSchoolTerms(ctx context.Context, schoolID string) ([]*shared.Term, error) {
	return findMany[shared.Term](ctx, m.termsCol, schoolFilter(schoolID), byOrder())
}

func (m *MongoStore) InsertSequence(ctx context.Context, s *shared.Sequence) error {
	return insertOne(ctx, m.sequencesCol, s, "sequence "+s.Name)
}

func (m *MongoStore) GetSequence(ctx context.Context, id string) (*shared.Sequence, error) {
	var s shared.Sequence
	if err := findOne(ctx, m.sequencesCol, bson.M{"_id": id}, &s, "sequence "+id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MongoStore) ListSequences(ctx context.Context, termID string) ([]*shared.Sequence, error) {
	return findMany[shared.Sequence](ctx, m.sequencesCol, bson.M{"term_id": termID}, byOrder())
}

func (m *MongoStore) ListSchoolSequences(ctx context.Context, schoolID string) ([]*shared.Sequence, error) {
	return findMany[shared.Sequence](ctx, m.sequencesCol, schoolFilter(schoolID), byOrder())
}

func (m *MongoStore) periodCollection(kind Kind) (*mongo.Collection, error) {
	switch kind {
	case KindAcademicYear:
		return m.yearsCol, nil
	case KindTerm:
		return m.termsCol, nil
	case KindSequence:
		return m.sequencesCol, nil
	}
	return nil, shared.Invalidf("unknown period kind %q", kind)
}

func (m *MongoStore) ClearCurrent(ctx context.Context, kind Kind, schoolID string) error {
	col, err := m.periodCollection(kind)
	if err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = col.UpdateMany(queryCtx,
		bson.M{"school_id": schoolID, "is_current": true},
		bson.M{"$set": bson.M{"is_current": false}},
	)
	return errors.Wrapf(err, "clear current %s", kind)
}

func (m *MongoStore) MarkCurrent(ctx context.Context, kind Kind, id string) error {
	col, err := m.periodCollection(kind)
	if err != nil {
		return err
	}
	return updateOne(ctx, col, id, bson.M{"$set": bson.M{"is_current": true}}, string(kind)+" "+id)
}

func (m *MongoStore) SetStatus(ctx context.Context, kind Kind, id, status string) error {
	if kind == KindAcademicYear {
		return shared.Invalidf("%q has no status", kind)
	}
	col, err := m.periodCollection(kind)
	if err != nil {
		return err
	}
	return updateOne(ctx, col, id, bson.M{"$set": bson.M{"status": status}}, string(kind)+" "+id)
}

func (m *MongoStore) SetSequenceActive(ctx context.Context, id string, active bool) error {
	return updateOne(ctx, m.sequencesCol, id, bson.M{"$set": bson.M{"is_active": active}}, "sequence "+id)
}

// ============================================================================
// Academic year records
// ============================================================================

func (m *MongoStore) InsertYear(ctx context.Context, y *academic.AcademicYear) error {
	err := insertOne(ctx, m.recordsCol, y, "record for student "+y.StudentID+" in "+y.Year)
	if errors.Is(err, shared.ErrConflict) {
		m.log.Debug().Str("student_id", y.StudentID).Str("year", y.Year).Msg("duplicate academic year record")
	}
	return err
}

func (m *MongoStore) GetYear(ctx context.Context, id string) (*academic.AcademicYear, error) {
	var y academic.AcademicYear
	if err := findOne(ctx, m.recordsCol, bson.M{"_id": id}, &y, "academic year record "+id); err != nil {
		return nil, err
	}
	return &y, nil
}

func (m *MongoStore) FindYear(ctx context.Context, studentID, year, schoolID string) (*academic.AcademicYear, error) {
	var y academic.AcademicYear
	filter := bson.M{"student_id": studentID, "year": year, "school_id": schoolID}
	if err := findOne(ctx, m.recordsCol, filter, &y, "record for student "+studentID+" in "+year); err != nil {
		return nil, err
	}
	return &y, nil
}

func (m *MongoStore) SaveYear(ctx context.Context, y *academic.AcademicYear) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := m.recordsCol.ReplaceOne(queryCtx, bson.M{"_id": y.ID}, y)
	if err != nil {
		return errors.Wrapf(err, "save academic year record %s", y.ID)
	}
	if res.MatchedCount == 0 {
		return shared.NotFoundf("academic year record %s", y.ID)
	}
	return nil
}

func (m *MongoStore) SetYearClass(ctx context.Context, id, classID string) error {
	return updateOne(ctx, m.recordsCol, id, bson.M{
		"$set": bson.M{"class_id": classID, "updated_at": time.Now()},
	}, "academic year record "+id)
}

func (m *MongoStore) DeleteYear(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := m.recordsCol.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "delete academic year record %s", id)
	}
	if res.DeletedCount == 0 {
		return shared.NotFoundf("academic year record %s", id)
	}
	return nil
}

func (m *MongoStore) ListCohort(ctx context.Context, classID, year string) ([]*academic.AcademicYear, error) {
	opts := options.Find().SetSort(bson.D{{Key: "student_id", Value: 1}})
	return findMany[academic.AcademicYear](ctx, m.recordsCol, bson.M{"class_id": classID, "year": year}, opts)
}

func (m *MongoStore) ListSchoolYear(ctx context.Context, schoolID, year string) ([]*academic.AcademicYear, error) {
	opts := options.Find().SetSort(bson.D{{Key: "student_id", Value: 1}})
	return findMany[academic.AcademicYear](ctx, m.recordsCol, bson.M{"school_id": schoolID, "year": year}, opts)
}

func (m *MongoStore) ListStudentYears(ctx context.Context, studentID string) ([]*academic.AcademicYear, error) {
	opts := options.Find().SetSort(bson.D{{Key: "year", Value: -1}})
	return findMany[academic.AcademicYear](ctx, m.recordsCol, bson.M{"student_id": studentID}, opts)
}
