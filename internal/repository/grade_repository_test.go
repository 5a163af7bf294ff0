package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/internal/testutil"
)

func TestGradeRepository(t *testing.T) {
	t.Run("Should pivot components into one row per enrollment", func(t *testing.T) {
		db := testutil.OpenDB(t)
		ctx := testutil.Ctx(t)
		inst := testutil.CreateAccount(t, db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, db, inst.ID, 5)
		e, err := repository.NewEnrollmentRepository(db).Insert(ctx, stu.ID, section.ID)
		require.NoError(t, err)

		repo := repository.NewGradeRepository(db)
		require.NoError(t, repo.UpsertScore(ctx, e.ID, models.ComponentQuiz, 50, ""))
		require.NoError(t, repo.UpsertScore(ctx, e.ID, models.ComponentQuiz, 60, ""))
		require.NoError(t, repo.UpsertScore(ctx, e.ID, models.ComponentFinal, 72.5, "B"))

		rows, err := repo.Gradebook(ctx, section.ID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		row := rows[0]
		assert.Equal(t, "stu1", row.StudentName)
		require.NotNil(t, row.Quiz)
		assert.InDelta(t, 60, *row.Quiz, 1e-9)
		assert.Nil(t, row.Midterm)
		require.NotNil(t, row.Final)
		assert.InDelta(t, 72.5, *row.Final, 1e-9)
		assert.Equal(t, "B", row.Letter)
	})

	t.Run("Should omit dropped students", func(t *testing.T) {
		db := testutil.OpenDB(t)
		ctx := testutil.Ctx(t)
		inst := testutil.CreateAccount(t, db, "inst1", models.RoleInstructor)
		stu := testutil.CreateAccount(t, db, "stu1", models.RoleStudent)
		section := testutil.CreateSection(t, db, inst.ID, 5)
		enrollments := repository.NewEnrollmentRepository(db)
		e, err := enrollments.Insert(ctx, stu.ID, section.ID)
		require.NoError(t, err)
		_, err = enrollments.Transition(ctx, stu.ID, section.ID, models.EnrollmentEnrolled, models.EnrollmentDropped)
		require.NoError(t, err)

		repo := repository.NewGradeRepository(db)
		rows, err := repo.Gradebook(ctx, section.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)

		ok, err := repo.EnrolledInSection(ctx, e.ID, section.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSettingsRepository(t *testing.T) {
	t.Run("Should upsert and read back values", func(t *testing.T) {
		db := testutil.OpenDB(t)
		ctx := testutil.Ctx(t)
		repo := repository.NewSettingsRepository(db)

		_, ok, err := repo.Get(ctx, repository.SettingMaintenance)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, repo.Set(ctx, repository.SettingMaintenance, "true"))
		require.NoError(t, repo.Set(ctx, repository.SettingMaintenance, "false"))

		value, ok, err := repo.Get(ctx, repository.SettingMaintenance)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "false", value)

		require.NoError(t, repo.Delete(ctx, repository.SettingMaintenance))
		_, ok, err = repo.Get(ctx, repository.SettingMaintenance)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
