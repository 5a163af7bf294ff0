package models

import "time"

// EnrollmentStatus is persisted verbatim in enrollments.status.
type EnrollmentStatus string

const (
	EnrollmentEnrolled EnrollmentStatus = "ENROLLED"
	EnrollmentDropped  EnrollmentStatus = "DROPPED"
)

type Enrollment struct {
	ID        int              `json:"id"`
	StudentID int              `json:"student_id"`
	SectionID int              `json:"section_id"`
	Status    EnrollmentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
