package models

import (
	"time"
)

type Course struct {
	ID      int    `json:"id"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Credits int    `json:"credits"`
}

type Section struct {
	ID                   int        `json:"id"`
	CourseID             int        `json:"course_id"`
	InstructorID         int        `json:"instructor_id"`
	DayOfWeek            string     `json:"day_of_week"`
	StartTime            string     `json:"start_time"`
	EndTime              string     `json:"end_time"`
	Room                 string     `json:"room"`
	Capacity             int        `json:"capacity"`
	Semester             string     `json:"semester"`
	Year                 int        `json:"year"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	DropDeadline         *time.Time `json:"drop_deadline,omitempty"`
}

// CatalogEntry is a section joined with its course, instructor and the
// live enrollment count.
type CatalogEntry struct {
	Section
	CourseCode     string `json:"course_code"`
	CourseTitle    string `json:"course_title"`
	Credits        int    `json:"credits"`
	InstructorName string `json:"instructor_name"`
	Enrolled       int    `json:"enrolled"`
	SeatsLeft      int    `json:"seats_left"`
}

type CatalogFilters struct {
	Semester     string
	Year         int
	InstructorID int
	CourseCode   string
	SectionIDs   []int
	Limit        int
}

type CreateCourseRequest struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Credits int    `json:"credits"`
}

type CreateSectionRequest struct {
	CourseID             int        `json:"course_id"`
	InstructorID         int        `json:"instructor_id"`
	DayOfWeek            string     `json:"day_of_week"`
	StartTime            string     `json:"start_time"`
	EndTime              string     `json:"end_time"`
	Room                 string     `json:"room"`
	Capacity             int        `json:"capacity"`
	Semester             string     `json:"semester"`
	Year                 int        `json:"year"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	DropDeadline         *time.Time `json:"drop_deadline,omitempty"`
}
