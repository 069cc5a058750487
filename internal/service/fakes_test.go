package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
)

type fakeCourses struct {
	items map[string]*models.Course
}

func (f *fakeCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := f.items[id]; ok {
		cp := *course
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourses) Create(ctx context.Context, course *models.Course) error {
	if f.items == nil {
		f.items = make(map[string]*models.Course)
	}
	course.ID = uuid.NewString()
	cp := *course
	f.items[course.ID] = &cp
	return nil
}

func (f *fakeCourses) List(ctx context.Context) ([]models.Course, error) {
	out := []models.Course{}
	for _, course := range f.items {
		out = append(out, *course)
	}
	return out, nil
}

type fakeClasses struct {
	items   map[string]*models.Class
	members map[string][]string
}

func (f *fakeClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if class, ok := f.items[id]; ok {
		cp := *class
		cp.StudentIDs = append([]string(nil), f.members[id]...)
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClasses) Create(ctx context.Context, class *models.Class) error {
	if f.items == nil {
		f.items = make(map[string]*models.Class)
	}
	class.ID = uuid.NewString()
	cp := *class
	f.items[class.ID] = &cp
	return nil
}

func (f *fakeClasses) List(ctx context.Context, courseID string) ([]models.Class, error) {
	out := []models.Class{}
	for _, class := range f.items {
		if courseID == "" || class.CourseID == courseID {
			out = append(out, *class)
		}
	}
	return out, nil
}

func (f *fakeClasses) AddStudent(ctx context.Context, classID, studentID string) error {
	if f.members == nil {
		f.members = make(map[string][]string)
	}
	for _, id := range f.members[classID] {
		if id == studentID {
			return nil
		}
	}
	f.members[classID] = append(f.members[classID], studentID)
	return nil
}

func (f *fakeClasses) ListStudents(ctx context.Context, classID string) ([]models.UserSummary, error) {
	out := []models.UserSummary{}
	for _, id := range f.members[classID] {
		out = append(out, models.UserSummary{ID: id, Role: models.RoleStudent})
	}
	return out, nil
}

type fakeUnits struct {
	items map[string]*models.Unit
}

func (f *fakeUnits) FindByID(ctx context.Context, id string) (*models.Unit, error) {
	if unit, ok := f.items[id]; ok {
		cp := *unit
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUnits) Create(ctx context.Context, unit *models.Unit) error {
	if f.items == nil {
		f.items = make(map[string]*models.Unit)
	}
	unit.ID = uuid.NewString()
	cp := *unit
	f.items[unit.ID] = &cp
	return nil
}

func (f *fakeUnits) List(ctx context.Context, courseID string) ([]models.Unit, error) {
	out := []models.Unit{}
	for _, unit := range f.items {
		if courseID == "" || unit.CourseID == courseID {
			out = append(out, *unit)
		}
	}
	return out, nil
}

func (f *fakeUnits) FindByIDsAndCourse(ctx context.Context, ids []string, courseID string) ([]models.Unit, error) {
	seen := make(map[string]bool)
	out := []models.Unit{}
	for _, id := range ids {
		unit, ok := f.items[id]
		if !ok || unit.CourseID != courseID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, *unit)
	}
	return out, nil
}

func (f *fakeUnits) FindByIDs(ctx context.Context, ids []string) ([]models.Unit, error) {
	out := []models.Unit{}
	for _, id := range ids {
		if unit, ok := f.items[id]; ok {
			out = append(out, *unit)
		}
	}
	return out, nil
}

type fakeUsers struct {
	items map[string]*models.User
}

func (f *fakeUsers) add(user *models.User) *models.User {
	if f.items == nil {
		f.items = make(map[string]*models.User)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	f.items[user.ID] = user
	return user
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := f.items[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) SetClass(ctx context.Context, userID, classID string) error {
	user, ok := f.items[userID]
	if !ok {
		return sql.ErrNoRows
	}
	id := classID
	user.ClassID = &id
	return nil
}

type fakeSlots struct {
	items     map[string]*models.TimetableSlot
	createErr error
	creates   int
}

func (f *fakeSlots) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlotDetail, error) {
	out := []models.TimetableSlotDetail{}
	for _, slot := range f.items {
		if filter.ClassID != "" && slot.ClassID != filter.ClassID {
			continue
		}
		if filter.TeacherID != "" && slot.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Term != "" && slot.Term != filter.Term {
			continue
		}
		if len(filter.UnitIDs) > 0 && !containsString(filter.UnitIDs, slot.UnitID) {
			continue
		}
		out = append(out, models.TimetableSlotDetail{
			ID:      slot.ID,
			Date:    slot.Date,
			Time:    slot.Time,
			Term:    slot.Term,
			Course:  models.CourseSummary{ID: slot.CourseID},
			Class:   models.ClassSummary{ID: slot.ClassID},
			Unit:    models.UnitSummary{ID: slot.UnitID},
			Teacher: models.UserSummary{ID: slot.TeacherID},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (f *fakeSlots) ListByIDs(ctx context.Context, ids []string) ([]models.TimetableSlotDetail, error) {
	all, _ := f.List(ctx, models.TimetableFilter{})
	out := []models.TimetableSlotDetail{}
	for _, slot := range all {
		if containsString(ids, slot.ID) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (f *fakeSlots) FindByID(ctx context.Context, id string) (*models.TimetableSlot, error) {
	if slot, ok := f.items[id]; ok {
		cp := *slot
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSlots) FindClassBooking(ctx context.Context, classID, date, timeRange, excludeID string) (*models.TimetableSlot, error) {
	return f.find(func(s *models.TimetableSlot) bool { return s.ClassID == classID }, date, timeRange, excludeID), nil
}

func (f *fakeSlots) FindTeacherBooking(ctx context.Context, teacherID, date, timeRange, excludeID string) (*models.TimetableSlot, error) {
	return f.find(func(s *models.TimetableSlot) bool { return s.TeacherID == teacherID }, date, timeRange, excludeID), nil
}

func (f *fakeSlots) find(match func(*models.TimetableSlot) bool, date, timeRange, excludeID string) *models.TimetableSlot {
	for _, slot := range f.items {
		if slot.ID != excludeID && match(slot) && slot.Date == date && slot.Time == timeRange {
			cp := *slot
			return &cp
		}
	}
	return nil
}

func (f *fakeSlots) Create(ctx context.Context, slot *models.TimetableSlot) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.items == nil {
		f.items = make(map[string]*models.TimetableSlot)
	}
	f.creates++
	slot.ID = uuid.NewString()
	slot.CreatedAt = time.Now().UTC()
	slot.UpdatedAt = slot.CreatedAt
	cp := *slot
	f.items[slot.ID] = &cp
	return nil
}

func (f *fakeSlots) Update(ctx context.Context, slot *models.TimetableSlot) error {
	if _, ok := f.items[slot.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *slot
	f.items[slot.ID] = &cp
	return nil
}

func (f *fakeSlots) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

type fakeEnrollments struct {
	items     []models.Enrollment
	createErr error
}

func (f *fakeEnrollments) Exists(ctx context.Context, key models.EnrollmentKey) (bool, error) {
	for _, e := range f.items {
		if e.StudentID == key.StudentID && e.CourseID == key.CourseID && e.ClassID == key.ClassID && e.Term == key.Term {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEnrollments) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	exists, _ := f.Exists(ctx, models.EnrollmentKey{
		StudentID: enrollment.StudentID,
		CourseID:  enrollment.CourseID,
		ClassID:   enrollment.ClassID,
		Term:      enrollment.Term,
	})
	if exists {
		return repository.ErrEnrollmentExists
	}
	enrollment.ID = uuid.NewString()
	enrollment.CreatedAt = time.Now().UTC()
	f.items = append(f.items, *enrollment)
	return nil
}

func (f *fakeEnrollments) LatestByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].StudentID == studentID {
			cp := f.items[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// schoolFixture seeds a course with two classes, two units, two teachers
// and one student.
type schoolFixture struct {
	courses  *fakeCourses
	classes  *fakeClasses
	units    *fakeUnits
	users    *fakeUsers
	slots    *fakeSlots
	enrolled *fakeEnrollments

	course, otherCourse     *models.Course
	class1, class2, foreign *models.Class
	unit1, unit2, otherUnit *models.Unit
	teacher1, teacher2      *models.User
	student, admin          *models.User
}

func newSchoolFixture() *schoolFixture {
	f := &schoolFixture{
		courses:  &fakeCourses{items: map[string]*models.Course{}},
		classes:  &fakeClasses{items: map[string]*models.Class{}},
		units:    &fakeUnits{items: map[string]*models.Unit{}},
		users:    &fakeUsers{},
		slots:    &fakeSlots{items: map[string]*models.TimetableSlot{}},
		enrolled: &fakeEnrollments{},
	}
	f.course = &models.Course{ID: uuid.NewString(), Name: "Science"}
	f.otherCourse = &models.Course{ID: uuid.NewString(), Name: "Arts"}
	f.courses.items[f.course.ID] = f.course
	f.courses.items[f.otherCourse.ID] = f.otherCourse

	f.class1 = &models.Class{ID: uuid.NewString(), Name: "CL1", CourseID: f.course.ID, Term: models.DefaultTerm}
	f.class2 = &models.Class{ID: uuid.NewString(), Name: "CL2", CourseID: f.course.ID, Term: models.DefaultTerm}
	f.foreign = &models.Class{ID: uuid.NewString(), Name: "AR1", CourseID: f.otherCourse.ID, Term: models.DefaultTerm}
	for _, c := range []*models.Class{f.class1, f.class2, f.foreign} {
		f.classes.items[c.ID] = c
	}

	f.teacher1 = f.users.add(&models.User{Name: "T1", Email: "t1@school.test", Role: models.RoleTeacher})
	f.teacher2 = f.users.add(&models.User{Name: "T2", Email: "t2@school.test", Role: models.RoleTeacher})
	f.student = f.users.add(&models.User{Name: "S1", Email: "s1@school.test", Role: models.RoleStudent})
	f.admin = f.users.add(&models.User{Name: "A1", Email: "a1@school.test", Role: models.RoleAdmin})

	f.unit1 = &models.Unit{ID: uuid.NewString(), Name: "Physics", CourseID: f.course.ID, TeacherID: f.teacher1.ID}
	f.unit2 = &models.Unit{ID: uuid.NewString(), Name: "Chemistry", CourseID: f.course.ID, TeacherID: f.teacher2.ID}
	f.otherUnit = &models.Unit{ID: uuid.NewString(), Name: "Painting", CourseID: f.otherCourse.ID, TeacherID: f.teacher2.ID}
	for _, u := range []*models.Unit{f.unit1, f.unit2, f.otherUnit} {
		f.units.items[u.ID] = u
	}
	return f
}

func (f *schoolFixture) timetableService(metrics *MetricsService) *TimetableService {
	return NewTimetableService(f.slots, f.courses, f.classes, f.units, f.users, nil, metrics, nil, nil)
}

func (f *schoolFixture) enrollmentService(metrics *MetricsService) *EnrollmentService {
	return NewEnrollmentService(f.enrolled, f.users, f.courses, f.classes, f.units, f.slots, metrics, nil)
}

// seedSlot stores a slot directly, bypassing the scheduler.
func (f *schoolFixture) seedSlot(class *models.Class, unit *models.Unit, teacher *models.User, date, timeRange, term string) *models.TimetableSlot {
	slot := &models.TimetableSlot{
		ID:        uuid.NewString(),
		CourseID:  class.CourseID,
		ClassID:   class.ID,
		UnitID:    unit.ID,
		TeacherID: teacher.ID,
		Date:      date,
		Time:      timeRange,
		Term:      term,
	}
	f.slots.items[slot.ID] = slot
	return slot
}
