package service_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/internal/testutil"
	"github.com/amirk1998/univ-erp/pkg/errors"
)

func enrolledCount(t *testing.T, f *fixture, sectionID int) int {
	t.Helper()
	count, err := repository.NewEnrollmentRepository(f.db).CountEnrolled(testutil.Ctx(t), sectionID)
	require.NoError(t, err)
	return count
}

func TestEnrollmentService_Register(t *testing.T) {
	t.Run("Should enroll a student with a free seat", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 2)

		require.NoError(t, f.enroll.Register(testutil.Ctx(t), sessionFor(stu), section.ID))
		assert.Equal(t, 1, enrolledCount(t, f, section.ID))
	})

	t.Run("Should refuse a second registration for the same pair", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 2)
		ctx := testutil.Ctx(t)

		require.NoError(t, f.enroll.Register(ctx, sessionFor(stu), section.ID))
		assert.ErrorIs(t, f.enroll.Register(ctx, sessionFor(stu), section.ID), errors.ErrAlreadyEnrolled)
	})

	t.Run("Should refuse a full section", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		a := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		b := testutil.CreateAccount(t, f.db, "stu2", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 1)
		ctx := testutil.Ctx(t)

		require.NoError(t, f.enroll.Register(ctx, sessionFor(a), section.ID))
		assert.ErrorIs(t, f.enroll.Register(ctx, sessionFor(b), section.ID), errors.ErrSectionFull)
		assert.Equal(t, 1, enrolledCount(t, f, section.ID))
	})

	t.Run("Should never oversubscribe the last seats", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		const capacity, students = 3, 12
		section := testutil.CreateSection(t, f.db, inst.ID, capacity)
		ctx := testutil.Ctx(t)

		sessions := make([]*models.Session, students)
		for i := range sessions {
			sessions[i] = sessionFor(testutil.CreateAccount(t, f.db, fmt.Sprintf("stu%02d", i), models.RoleStudent))
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			enrolled int
			full     int
		)
		for _, s := range sessions {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := f.enroll.Register(ctx, s, section.ID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					enrolled++
				case errors.Is(err, errors.ErrSectionFull):
					full++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, capacity, enrolled)
		assert.Equal(t, students-capacity, full)
		assert.Equal(t, capacity, enrolledCount(t, f, section.ID))
	})

	t.Run("Should keep one row when the same student races itself", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 5)
		ctx := testutil.Ctx(t)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := f.enroll.Register(ctx, sessionFor(stu), section.ID)
				if err != nil {
					assert.ErrorIs(t, err, errors.ErrAlreadyEnrolled)
					return
				}
				mu.Lock()
				successes++
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		rows, err := repository.NewEnrollmentRepository(f.db).CountRows(ctx, stu.ID, section.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, rows)
	})

	t.Run("Should reactivate the dropped row", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 1)
		ctx := testutil.Ctx(t)
		repo := repository.NewEnrollmentRepository(f.db)

		require.NoError(t, f.enroll.Register(ctx, sessionFor(stu), section.ID))
		before, err := repo.Get(ctx, stu.ID, section.ID)
		require.NoError(t, err)

		require.NoError(t, f.enroll.Drop(ctx, sessionFor(stu), section.ID))
		require.NoError(t, f.enroll.Register(ctx, sessionFor(stu), section.ID))

		after, err := repo.Get(ctx, stu.ID, section.ID)
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, models.EnrollmentEnrolled, after.Status)

		rows, err := repo.CountRows(ctx, stu.ID, section.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, rows)
	})

	t.Run("Should check capacity when reactivating", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		a := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		b := testutil.CreateAccount(t, f.db, "stu2", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 1)
		ctx := testutil.Ctx(t)

		require.NoError(t, f.enroll.Register(ctx, sessionFor(a), section.ID))
		require.NoError(t, f.enroll.Drop(ctx, sessionFor(a), section.ID))
		require.NoError(t, f.enroll.Register(ctx, sessionFor(b), section.ID))

		assert.ErrorIs(t, f.enroll.Register(ctx, sessionFor(a), section.ID), errors.ErrSectionFull)
	})

	t.Run("Should refuse registration after the deadline without writing", func(t *testing.T) {
		now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		f := newFixture(t, withClock(now))
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		closed := testutil.CreateSection(t, f.db, inst.ID, 5, testutil.WithRegistrationDeadline(now.Add(-time.Minute)))
		ctx := testutil.Ctx(t)

		assert.ErrorIs(t, f.enroll.Register(ctx, sessionFor(stu), closed.ID), errors.ErrDeadlinePassed)
		rows, err := repository.NewEnrollmentRepository(f.db).CountRows(ctx, stu.ID, closed.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, rows)
	})

	t.Run("Should fall back to the global registration deadline", func(t *testing.T) {
		now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		f := newFixture(t, withClock(now))
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 5)
		open := testutil.CreateSection(t, f.db, inst.ID, 5, testutil.WithRegistrationDeadline(now.Add(time.Hour)))
		ctx := testutil.Ctx(t)

		require.NoError(t, f.settings.Set(ctx, repository.SettingRegistrationDeadline, "2026-08-31"))

		assert.ErrorIs(t, f.enroll.Register(ctx, sessionFor(stu), section.ID), errors.ErrDeadlinePassed)
		assert.NoError(t, f.enroll.Register(ctx, sessionFor(stu), open.ID))
	})

	t.Run("Should refuse an unknown section", func(t *testing.T) {
		f := newFixture(t)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		assert.ErrorIs(t, f.enroll.Register(testutil.Ctx(t), sessionFor(stu), 404), errors.ErrSectionNotFound)
	})

	t.Run("Should enforce the policy before anything else", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		ctx := testutil.Ctx(t)

		assert.ErrorIs(t, f.enroll.Register(ctx, nil, 404), errors.ErrAccessDenied)
		assert.ErrorIs(t, f.enroll.Register(ctx, sessionFor(inst), 404), errors.ErrAccessDenied)

		require.NoError(t, f.settings.Set(ctx, repository.SettingMaintenance, "true"))
		assert.ErrorIs(t, f.enroll.Register(ctx, sessionFor(stu), 404), errors.ErrAccessDenied)
	})

	t.Run("Should keep seats when capacity shrinks", func(t *testing.T) {
		f := newFixture(t)
		admin := testutil.CreateAccount(t, f.db, "admin", models.RoleAdmin)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		section := testutil.CreateSection(t, f.db, inst.ID, 3)
		ctx := testutil.Ctx(t)

		for i := range 3 {
			stu := testutil.CreateAccount(t, f.db, fmt.Sprintf("stu%d", i), models.RoleStudent)
			require.NoError(t, f.enroll.Register(ctx, sessionFor(stu), section.ID))
		}
		require.NoError(t, f.admin.UpdateSectionCapacity(ctx, sessionFor(admin), section.ID, 1))
		assert.Equal(t, 3, enrolledCount(t, f, section.ID))

		late := testutil.CreateAccount(t, f.db, "late", models.RoleStudent)
		assert.ErrorIs(t, f.enroll.Register(ctx, sessionFor(late), section.ID), errors.ErrSectionFull)
	})
}

func TestEnrollmentService_Drop(t *testing.T) {
	t.Run("Should refuse a pair that is not enrolled", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 2)
		ctx := testutil.Ctx(t)

		assert.ErrorIs(t, f.enroll.Drop(ctx, sessionFor(stu), section.ID), errors.ErrNotEnrolled)

		require.NoError(t, f.enroll.Register(ctx, sessionFor(stu), section.ID))
		require.NoError(t, f.enroll.Drop(ctx, sessionFor(stu), section.ID))
		assert.ErrorIs(t, f.enroll.Drop(ctx, sessionFor(stu), section.ID), errors.ErrNotEnrolled)
	})

	t.Run("Should refuse a drop after the drop deadline", func(t *testing.T) {
		now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		f := newFixture(t, withClock(now))
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 2, testutil.WithDropDeadline(now.Add(-time.Hour)))
		ctx := testutil.Ctx(t)

		require.NoError(t, f.enroll.Register(ctx, sessionFor(stu), section.ID))
		assert.ErrorIs(t, f.enroll.Drop(ctx, sessionFor(stu), section.ID), errors.ErrDeadlinePassed)
		assert.Equal(t, 1, enrolledCount(t, f, section.ID))
	})

	t.Run("Should free the seat for another student", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		a := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		b := testutil.CreateAccount(t, f.db, "stu2", models.RoleStudent)
		section := testutil.CreateSection(t, f.db, inst.ID, 1)
		ctx := testutil.Ctx(t)

		require.NoError(t, f.enroll.Register(ctx, sessionFor(a), section.ID))
		require.NoError(t, f.enroll.Drop(ctx, sessionFor(a), section.ID))
		assert.NoError(t, f.enroll.Register(ctx, sessionFor(b), section.ID))
	})
}

func TestEnrollmentService_ReadModels(t *testing.T) {
	t.Run("Should list only the student's active sections", func(t *testing.T) {
		f := newFixture(t)
		inst := testutil.CreateAccount(t, f.db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, f.db, "stu1", models.RoleStudent)
		kept := testutil.CreateSection(t, f.db, inst.ID, 2)
		dropped := testutil.CreateSection(t, f.db, inst.ID, 2)
		testutil.CreateSection(t, f.db, inst.ID, 2)
		ctx := testutil.Ctx(t)

		require.NoError(t, f.enroll.Register(ctx, sessionFor(stu), kept.ID))
		require.NoError(t, f.enroll.Register(ctx, sessionFor(stu), dropped.ID))
		require.NoError(t, f.enroll.Drop(ctx, sessionFor(stu), dropped.ID))

		mine, err := f.enroll.MyEnrollments(ctx, sessionFor(stu))
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, kept.ID, mine[0].ID)

		all, err := f.enroll.Catalog(ctx, sessionFor(stu), models.CatalogFilters{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		taught, err := f.enroll.InstructorSections(ctx, sessionFor(inst))
		require.NoError(t, err)
		assert.Len(t, taught, 3)
	})

	t.Run("Should require a session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.enroll.Catalog(testutil.Ctx(t), nil, models.CatalogFilters{})
		assert.ErrorIs(t, err, errors.ErrSessionMissing)
		_, err = f.enroll.MyEnrollments(testutil.Ctx(t), nil)
		assert.ErrorIs(t, err, errors.ErrAccessDenied)
	})
}
