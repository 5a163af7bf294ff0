package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/internal/testutil"
	"github.com/amirk1998/univ-erp/pkg/errors"
)

func TestSectionRepository(t *testing.T) {
	t.Run("Should round trip a section with deadlines", func(t *testing.T) {
		db := testutil.OpenDB(t)
		ctx := testutil.Ctx(t)
		inst := testutil.CreateAccount(t, db, "inst1", models.RoleInstructor)
		deadline := time.Date(2026, 8, 1, 23, 59, 0, 0, time.UTC)
		section := testutil.CreateSection(t, db, inst.ID, 30, testutil.WithRegistrationDeadline(deadline))

		got, err := repository.NewSectionRepository(db).GetByID(ctx, section.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, got.Capacity)
		require.NotNil(t, got.RegistrationDeadline)
		assert.True(t, deadline.Equal(*got.RegistrationDeadline))
		assert.Nil(t, got.DropDeadline)
	})

	t.Run("Should return ErrSectionNotFound", func(t *testing.T) {
		db := testutil.OpenDB(t)
		repo := repository.NewSectionRepository(db)

		_, err := repo.GetByID(testutil.Ctx(t), 42)
		assert.ErrorIs(t, err, errors.ErrSectionNotFound)
		_, err = repo.GetCapacity(testutil.Ctx(t), 42)
		assert.ErrorIs(t, err, errors.ErrSectionNotFound)
		assert.ErrorIs(t, repo.UpdateCapacity(testutil.Ctx(t), 42, 5), errors.ErrSectionNotFound)
	})

	t.Run("Should reject a duplicate course code", func(t *testing.T) {
		db := testutil.OpenDB(t)
		repo := repository.NewSectionRepository(db)

		require.NoError(t, repo.CreateCourse(testutil.Ctx(t), &models.Course{Code: "CSE101", Title: "Intro", Credits: 4}))
		err := repo.CreateCourse(testutil.Ctx(t), &models.Course{Code: "CSE101", Title: "Again", Credits: 4})
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("Should list the catalog with live counts", func(t *testing.T) {
		db := testutil.OpenDB(t)
		ctx := testutil.Ctx(t)
		inst := testutil.CreateAccount(t, db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, db, "stu1", models.RoleStudent)
		full := testutil.CreateSection(t, db, inst.ID, 1)
		open := testutil.CreateSection(t, db, inst.ID, 3)

		_, err := repository.NewEnrollmentRepository(db).Insert(ctx, stu.ID, full.ID)
		require.NoError(t, err)

		entries, err := repository.NewSectionRepository(db).ListCatalog(ctx, models.CatalogFilters{})
		require.NoError(t, err)
		require.Len(t, entries, 2)

		bySection := map[int]*models.CatalogEntry{}
		for _, e := range entries {
			bySection[e.ID] = e
		}
		assert.Equal(t, 1, bySection[full.ID].Enrolled)
		assert.Equal(t, 0, bySection[full.ID].SeatsLeft)
		assert.Equal(t, 3, bySection[open.ID].SeatsLeft)
		assert.Equal(t, "inst1", bySection[open.ID].InstructorName)
	})

	t.Run("Should filter the catalog", func(t *testing.T) {
		db := testutil.OpenDB(t)
		ctx := testutil.Ctx(t)
		inst1 := testutil.CreateAccount(t, db, "inst1", models.RoleInstructor)
		inst2 := testutil.CreateAccount(t, db, "inst2", models.RoleInstructor)
		a := testutil.CreateSection(t, db, inst1.ID, 10)
		testutil.CreateSection(t, db, inst2.ID, 10)
		repo := repository.NewSectionRepository(db)

		entries, err := repo.ListCatalog(ctx, models.CatalogFilters{InstructorID: inst1.ID})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, a.ID, entries[0].ID)

		entries, err = repo.ListCatalog(ctx, models.CatalogFilters{SectionIDs: []int{}})
		require.NoError(t, err)
		assert.Empty(t, entries)

		entries, err = repo.ListCatalog(ctx, models.CatalogFilters{Semester: "WINTER"})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Should report the assigned instructor", func(t *testing.T) {
		db := testutil.OpenDB(t)
		ctx := testutil.Ctx(t)
		inst := testutil.CreateAccount(t, db, "inst1", models.RoleInstructor)
		other := testutil.CreateAccount(t, db, "inst2", models.RoleInstructor)
		section := testutil.CreateSection(t, db, inst.ID, 10)
		repo := repository.NewSectionRepository(db)

		ok, err := repo.IsTaughtBy(ctx, section.ID, inst.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.IsTaughtBy(ctx, section.ID, other.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
