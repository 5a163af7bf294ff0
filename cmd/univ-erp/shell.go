package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/amirk1998/univ-erp/internal/audit"
	"github.com/amirk1998/univ-erp/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// ShellCmd returns the interactive menu command
func ShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive menu for students, instructors and admins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *Application) error {
				app.startBackgroundWorkers(ctx)
				sh := &shell{
					app:     app,
					in:      cmd.InOrStdin(),
					out:     cmd.OutOrStdout(),
					scanner: bufio.NewScanner(cmd.InOrStdin()),
				}
				sh.run(ctx)
				return nil
			})
		},
	}
}

type menuItem struct {
	label  string
	action func(context.Context)
}

type shell struct {
	app     *Application
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
	session *models.Session
	done    bool
}

func (sh *shell) run(ctx context.Context) {
	fmt.Fprintln(sh.out, titleStyle.Render("University ERP"))

	for !sh.done && ctx.Err() == nil {
		items := sh.menu()
		if sh.session == nil {
			fmt.Fprintln(sh.out, titleStyle.Render("\n--- Sign in ---"))
		} else {
			fmt.Fprintln(sh.out, titleStyle.Render(fmt.Sprintf("\n--- %s (%s) ---", sh.session.Username(), sh.session.Role())))
		}
		for i, item := range items {
			fmt.Fprintf(sh.out, "%d. %s\n", i+1, item.label)
		}

		choice, ok := sh.prompt("\nSelect option: ")
		if !ok {
			return
		}
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(items) {
			fmt.Fprintln(sh.out, "Invalid option")
			continue
		}
		fmt.Fprintln(sh.out)
		items[n-1].action(ctx)
	}
}

func (sh *shell) menu() []menuItem {
	exit := menuItem{"Exit", func(context.Context) { sh.done = true }}
	if sh.session == nil {
		return []menuItem{{"Login", sh.login}, exit}
	}

	common := []menuItem{
		{"Change password", sh.changePassword},
		{"Logout", sh.logout},
		exit,
	}

	var items []menuItem
	switch sh.session.Role() {
	case models.RoleStudent:
		items = []menuItem{
			{"Browse catalog", sh.catalog},
			{"My enrollments", sh.myEnrollments},
			{"Register for a section", sh.register},
			{"Drop a section", sh.drop},
			{"My grades", sh.myGrades},
		}
	case models.RoleInstructor:
		items = []menuItem{
			{"My sections", sh.mySections},
			{"View gradebook", sh.gradebook},
			{"Enter scores", sh.enterScores},
			{"Class average", sh.classAverage},
		}
	case models.RoleAdmin:
		items = []menuItem{
			{"Browse catalog", sh.catalog},
			{"Toggle maintenance", sh.toggleMaintenance},
			{"Unlock account", sh.unlock},
			{"View audit log", sh.auditLog},
		}
	}
	return append(items, common...)
}

func (sh *shell) login(ctx context.Context) {
	username, _ := sh.prompt("Username: ")
	password, ok := sh.promptSecret("Password: ")
	if !ok {
		return
	}

	session, err := sh.app.auth.AttemptLogin(ctx, username, password)
	if err != nil {
		sh.fail("Login failed", err)
		return
	}
	sh.session = session
	sh.ok(fmt.Sprintf("Welcome, %s", session.Username()))
}

func (sh *shell) logout(ctx context.Context) {
	if err := sh.app.auth.Logout(ctx, sh.session); err != nil {
		sh.fail("Logout failed", err)
	}
	sh.session = nil
}

func (sh *shell) changePassword(ctx context.Context) {
	oldPassword, _ := sh.promptSecret("Current password: ")
	newPassword, ok := sh.promptSecret("New password: ")
	if !ok {
		return
	}

	err := sh.app.auth.ChangePassword(ctx, sh.session, &models.ChangePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		sh.fail("Password change failed", err)
		return
	}
	sh.ok("Password changed")
}

func (sh *shell) catalog(ctx context.Context) {
	var filters models.CatalogFilters
	filters.Semester, _ = sh.prompt("Semester (blank for all): ")
	filters.CourseCode, _ = sh.prompt("Course code (blank for all): ")

	entries, err := sh.app.enrollment.Catalog(ctx, sh.session, filters)
	if err != nil {
		sh.fail("Failed to load catalog", err)
		return
	}
	sh.printSections(entries)
}

func (sh *shell) myEnrollments(ctx context.Context) {
	entries, err := sh.app.enrollment.MyEnrollments(ctx, sh.session)
	if err != nil {
		sh.fail("Failed to load enrollments", err)
		return
	}
	sh.printSections(entries)
}

func (sh *shell) myGrades(ctx context.Context) {
	sheet, err := sh.app.grades.MyGrades(ctx, sh.session)
	if err != nil {
		sh.fail("Failed to load grades", err)
		return
	}
	sh.printSheet(sheet)
}

func (sh *shell) mySections(ctx context.Context) {
	entries, err := sh.app.enrollment.InstructorSections(ctx, sh.session)
	if err != nil {
		sh.fail("Failed to load sections", err)
		return
	}
	sh.printSections(entries)
}

func (sh *shell) register(ctx context.Context) {
	sectionID, ok := sh.promptID("Section ID: ")
	if !ok {
		return
	}
	if err := sh.app.enrollment.Register(ctx, sh.session, sectionID); err != nil {
		sh.fail("Registration failed", err)
		return
	}
	sh.ok(fmt.Sprintf("Registered for section %d", sectionID))
}

func (sh *shell) drop(ctx context.Context) {
	sectionID, ok := sh.promptID("Section ID: ")
	if !ok {
		return
	}
	if err := sh.app.enrollment.Drop(ctx, sh.session, sectionID); err != nil {
		sh.fail("Drop failed", err)
		return
	}
	sh.ok(fmt.Sprintf("Dropped section %d", sectionID))
}

func (sh *shell) gradebook(ctx context.Context) {
	sectionID, ok := sh.promptID("Section ID: ")
	if !ok {
		return
	}
	rows, err := sh.app.grades.Gradebook(ctx, sh.session, sectionID)
	if err != nil {
		sh.fail("Failed to load gradebook", err)
		return
	}
	sh.printGrades(rows)
}

func (sh *shell) enterScores(ctx context.Context) {
	sectionID, ok := sh.promptID("Section ID: ")
	if !ok {
		return
	}
	rows, err := sh.app.grades.Gradebook(ctx, sh.session, sectionID)
	if err != nil {
		sh.fail("Failed to load gradebook", err)
		return
	}

	fmt.Fprintln(sh.out, "Leave a score blank to keep it.")
	for i := range rows {
		row := &rows[i]
		fmt.Fprintf(sh.out, "\n%s\n", row.StudentName)
		for _, c := range []struct {
			label string
			dst   **float64
		}{
			{"Quiz", &row.Quiz},
			{"Midterm", &row.Midterm},
			{"End-sem", &row.Endsem},
		} {
			raw, _ := sh.prompt(fmt.Sprintf("  %s [%s]: ", c.label, formatScore(*c.dst)))
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				fmt.Fprintln(sh.out, errStyle.Render("  not a number, kept the old score"))
				continue
			}
			*c.dst = &v
		}
	}

	saved, err := sh.app.grades.SaveScores(ctx, sh.session, sectionID, rows)
	if err != nil {
		sh.fail("Failed to save scores", err)
		return
	}
	sh.printGrades(saved)
	sh.ok("Scores saved")
}

func (sh *shell) classAverage(ctx context.Context) {
	sectionID, ok := sh.promptID("Section ID: ")
	if !ok {
		return
	}
	avg, graded, err := sh.app.grades.ClassAverage(ctx, sh.session, sectionID)
	if err != nil {
		sh.fail("Failed to compute average", err)
		return
	}
	fmt.Fprintf(sh.out, "Average %.2f over %d graded students\n", avg, graded)
}

func (sh *shell) toggleMaintenance(ctx context.Context) {
	on, err := sh.app.admin.MaintenanceOn(ctx, sh.session)
	if err != nil {
		sh.fail("Failed to read maintenance mode", err)
		return
	}
	if err := sh.app.admin.SetMaintenance(ctx, sh.session, !on); err != nil {
		sh.fail("Failed to change maintenance mode", err)
		return
	}
	sh.ok("Maintenance is now " + onOff(!on))
}

func (sh *shell) unlock(ctx context.Context) {
	accountID, ok := sh.promptID("Account ID: ")
	if !ok {
		return
	}
	if err := sh.app.admin.UnlockAccount(ctx, sh.session, accountID); err != nil {
		sh.fail("Unlock failed", err)
		return
	}
	sh.ok(fmt.Sprintf("Account %d unlocked", accountID))
}

func (sh *shell) auditLog(ctx context.Context) {
	action, _ := sh.prompt("Action filter (blank for all): ")

	events, err := sh.app.auditLogger.QueryLogs(ctx, audit.QueryFilters{
		Action: strings.ToUpper(action),
		Limit:  25,
	})
	if err != nil {
		sh.fail("Failed to query audit log", err)
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TIME", "LEVEL", "USER", "ACTION", "RESOURCE", "OK", "DETAIL")
	for _, e := range events {
		user := "-"
		if e.UserID != nil {
			user = strconv.Itoa(*e.UserID)
		}
		detail := e.Metadata
		if e.ErrorMsg != "" {
			detail = e.ErrorMsg
		}
		t.Row(e.Timestamp.Local().Format(time.DateTime), string(e.Level), user, e.Action, e.Resource, strconv.FormatBool(e.Success), detail)
	}
	fmt.Fprintln(sh.out, t.Render())
}

func (sh *shell) printSections(entries []*models.CatalogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(sh.out, "No sections found")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "COURSE", "TITLE", "INSTRUCTOR", "WHEN", "ROOM", "TERM", "SEATS")
	for _, e := range entries {
		t.Row(
			strconv.Itoa(e.ID),
			e.CourseCode,
			e.CourseTitle,
			e.InstructorName,
			fmt.Sprintf("%s %s-%s", e.DayOfWeek, e.StartTime, e.EndTime),
			e.Room,
			fmt.Sprintf("%s %d", e.Semester, e.Year),
			fmt.Sprintf("%d/%d", e.SeatsLeft, e.Capacity),
		)
	}
	fmt.Fprintln(sh.out, t.Render())
}

func (sh *shell) printGrades(rows []models.GradeRow) {
	if len(rows) == 0 {
		fmt.Fprintln(sh.out, "No enrolled students")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STUDENT", "QUIZ", "MIDTERM", "END-SEM", "FINAL", "GRADE")
	for _, r := range rows {
		t.Row(r.StudentName, formatScore(r.Quiz), formatScore(r.Midterm), formatScore(r.Endsem), formatScore(r.Final), r.Letter)
	}
	fmt.Fprintln(sh.out, t.Render())
}

func (sh *shell) printSheet(rows []models.StudentGrade) {
	if len(rows) == 0 {
		fmt.Fprintln(sh.out, "No enrolled sections")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SECTION", "COURSE", "QUIZ", "MIDTERM", "END-SEM", "FINAL", "GRADE")
	for _, r := range rows {
		t.Row(strconv.Itoa(r.SectionID), r.CourseCode, formatScore(r.Quiz), formatScore(r.Midterm), formatScore(r.Endsem), formatScore(r.Final), r.Letter)
	}
	fmt.Fprintln(sh.out, t.Render())
}

func (sh *shell) prompt(label string) (string, bool) {
	fmt.Fprint(sh.out, label)
	if !sh.scanner.Scan() {
		sh.done = true
		return "", false
	}
	return strings.TrimSpace(sh.scanner.Text()), true
}

func (sh *shell) promptSecret(label string) (string, bool) {
	if f, ok := sh.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(sh.out, label)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(sh.out)
		if err != nil {
			sh.fail("Failed to read password", err)
			return "", false
		}
		return string(pw), true
	}
	return sh.prompt(label)
}

func (sh *shell) promptID(label string) (int, bool) {
	raw, ok := sh.prompt(label)
	if !ok {
		return 0, false
	}
	id, err := parseID(raw)
	if err != nil {
		fmt.Fprintln(sh.out, errStyle.Render(err.Error()))
		return 0, false
	}
	return id, true
}

func (sh *shell) ok(msg string) {
	fmt.Fprintln(sh.out, okStyle.Render("[OK] "+msg))
}

func (sh *shell) fail(msg string, err error) {
	fmt.Fprintln(sh.out, errStyle.Render(fmt.Sprintf("%s: %v", msg, err)))
}

// readPassword prompts on out and reads one line from in without echo
// when in is a terminal.
func readPassword(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
