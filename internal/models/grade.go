package models

// Grade components as stored in grades.component.
const (
	ComponentQuiz    = "QUIZ"
	ComponentMidterm = "MIDTERM"
	ComponentEndsem  = "ENDSEM"
	ComponentFinal   = "FINAL"
)

// GradeRow is one enrolled student's line in a section gradebook.
type GradeRow struct {
	EnrollmentID int      `json:"enrollment_id"`
	StudentID    int      `json:"student_id"`
	StudentName  string   `json:"student_name,omitempty"`
	Quiz         *float64 `json:"quiz,omitempty"`
	Midterm      *float64 `json:"midterm,omitempty"`
	Endsem       *float64 `json:"endsem,omitempty"`
	Final        *float64 `json:"final,omitempty"`
	Letter       string   `json:"letter,omitempty"`
}

// StudentGrade is one section on a student's own grade sheet.
type StudentGrade struct {
	EnrollmentID int      `json:"enrollment_id"`
	SectionID    int      `json:"section_id"`
	CourseCode   string   `json:"course_code"`
	CourseTitle  string   `json:"course_title"`
	Quiz         *float64 `json:"quiz,omitempty"`
	Midterm      *float64 `json:"midterm,omitempty"`
	Endsem       *float64 `json:"endsem,omitempty"`
	Final        *float64 `json:"final,omitempty"`
	Letter       string   `json:"letter,omitempty"`
}
