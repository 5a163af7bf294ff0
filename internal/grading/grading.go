// Package grading computes weighted final scores and letter grades.
package grading

import (
	"math"

	"github.com/amirk1998/univ-erp/internal/models"
)

const (
	QuizWeight    = 0.20
	MidtermWeight = 0.30
	EndsemWeight  = 0.50
)

var letterSteps = []struct {
	min    float64
	letter string
}{
	{90, "A+"},
	{80, "A"},
	{70, "B"},
	{60, "C"},
	{50, "D"},
	{40, "E"},
}

// FinalScore returns the weighted final and true, or false when any
// component is missing.
func FinalScore(quiz, midterm, endsem *float64) (float64, bool) {
	if quiz == nil || midterm == nil || endsem == nil {
		return 0, false
	}
	final := QuizWeight**quiz + MidtermWeight**midterm + EndsemWeight**endsem
	// Drop float noise such as 66.99999999999999.
	return math.Round(final*1e6) / 1e6, true
}

// Letter maps a final score to its letter grade.
func Letter(final float64) string {
	for _, step := range letterSteps {
		if final >= step.min {
			return step.letter
		}
	}
	return "F"
}

// ComputeFinal returns a copy of rows with Final and Letter filled in for
// every row that has all three components. Rows with a partial component
// set keep a nil Final and an empty Letter.
func ComputeFinal(rows []models.GradeRow) []models.GradeRow {
	out := make([]models.GradeRow, len(rows))
	for i, row := range rows {
		row.Final = nil
		row.Letter = ""
		if final, ok := FinalScore(row.Quiz, row.Midterm, row.Endsem); ok {
			row.Final = &final
			row.Letter = Letter(final)
		}
		out[i] = row
	}
	return out
}
