package repository

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Constraint names created by the migrations.
const (
	constraintUserEmail        = "uq_users_email"
	constraintSlotClassTime    = "uq_timetable_slots_class_time"
	constraintSlotTeacherTime  = "uq_timetable_slots_teacher_time"
	constraintEnrollmentTuple  = "uq_enrollments_student_course_class_term"
	constraintEnrollmentUnits  = "enrollment_units_pkey"
	constraintEnrollmentSlots  = "enrollment_timetables_pkey"
	constraintGradeStudentUnit = "uq_grades_student_unit_term"
)

// Errors returned when a write loses a race against a unique index.
var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrClassSlotTaken    = errors.New("class already booked at this date and time")
	ErrTeacherSlotTaken  = errors.New("teacher already booked at this date and time")
	ErrEnrollmentExists  = errors.New("enrollment already exists")
	ErrDuplicateRelation = errors.New("duplicate relation row")
)

// uniqueConstraint returns the violated constraint name when err is a
// PostgreSQL unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// translateUnique maps a unique violation to its domain sentinel, leaving
// other errors untouched.
func translateUnique(err error) error {
	name, ok := uniqueConstraint(err)
	if !ok {
		return err
	}
	switch name {
	case constraintUserEmail:
		return ErrEmailTaken
	case constraintSlotClassTime:
		return ErrClassSlotTaken
	case constraintSlotTeacherTime:
		return ErrTeacherSlotTaken
	case constraintEnrollmentTuple:
		return ErrEnrollmentExists
	case constraintEnrollmentUnits, constraintEnrollmentSlots, constraintGradeStudentUnit:
		return ErrDuplicateRelation
	default:
		return err
	}
}
