package dto

// CreateCourseRequest defines a new course.
type CreateCourseRequest struct {
	Name     string `json:"name" validate:"required"`
	Duration string `json:"duration" validate:"required"`
}

// CreateClassRequest defines a new class under a course.
type CreateClassRequest struct {
	Name     string `json:"name" validate:"required"`
	CourseID string `json:"courseId" validate:"required"`
	Term     string `json:"term"`
}

// CreateUnitRequest defines a new unit under a course.
type CreateUnitRequest struct {
	Name      string `json:"name" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
	TeacherID string `json:"teacherId" validate:"required"`
	Semester  string `json:"semester" validate:"required"`
}
