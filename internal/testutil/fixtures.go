package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/internal/security"
)

// Password is the password of every account created by CreateAccount.
const Password = "Passw0rdOK"

var courseSeq atomic.Int64

// Hasher returns a bcrypt hasher at the minimum cost.
func Hasher() *security.PasswordHasher {
	return security.NewPasswordHasher(bcrypt.MinCost)
}

// CreateAccount inserts an ACTIVE account whose password is Password.
func CreateAccount(t *testing.T, db *sql.DB, username string, role models.Role) *models.Account {
	t.Helper()

	hash, err := Hasher().Hash(Password)
	require.NoError(t, err)

	account := &models.Account{Username: username, Role: role, PasswordHash: hash}
	require.NoError(t, repository.NewAccountRepository(db).Create(Ctx(t), account))
	return account
}

// SectionOption tweaks a section before it is inserted.
type SectionOption func(*models.Section)

// WithRegistrationDeadline sets the per-section registration deadline.
func WithRegistrationDeadline(at time.Time) SectionOption {
	return func(s *models.Section) { s.RegistrationDeadline = &at }
}

// WithDropDeadline sets the per-section drop deadline.
func WithDropDeadline(at time.Time) SectionOption {
	return func(s *models.Section) { s.DropDeadline = &at }
}

// CreateSection inserts a fresh course and one section of it taught by
// instructorID.
func CreateSection(t *testing.T, db *sql.DB, instructorID, capacity int, opts ...SectionOption) *models.Section {
	t.Helper()
	ctx := Ctx(t)
	repo := repository.NewSectionRepository(db)

	course := &models.Course{
		Code:    fmt.Sprintf("TST%03d", courseSeq.Add(1)%1000),
		Title:   "Test Course",
		Credits: 4,
	}
	require.NoError(t, repo.CreateCourse(ctx, course))

	section := &models.Section{
		CourseID:     course.ID,
		InstructorID: instructorID,
		DayOfWeek:    "MON",
		StartTime:    "09:00",
		EndTime:      "10:30",
		Room:         "LH-1",
		Capacity:     capacity,
		Semester:     "MONSOON",
		Year:         2026,
	}
	for _, opt := range opts {
		opt(section)
	}
	require.NoError(t, repo.Create(ctx, section))
	return section
}
