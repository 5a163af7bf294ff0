package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirk1998/univ-erp/internal/models"
)

// AdminCmd returns the admin command group. Every subcommand except
// bootstrap signs in as the admin named by --as.
func AdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations",
	}

	cmd.PersistentFlags().String("as", "", "Admin username to sign in as")
	cmd.PersistentFlags().String("password", "", "Admin password (defaults to UNIV_ERP_PASSWORD or a prompt)")

	cmd.AddCommand(
		BootstrapCmd(),
		CreateUserCmd(),
		UnlockCmd(),
		DeleteUserCmd(),
		MaintenanceCmd(),
		SetSettingCmd(),
		CreateCourseCmd(),
		CreateSectionCmd(),
		SetCapacityCmd(),
	)

	return cmd
}

// BootstrapCmd returns the first-admin command
func BootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap <username>",
		Short: "Create the first admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := adminPassword(cmd, "New admin password: ")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *Application) error {
				account, err := app.admin.BootstrapAdmin(ctx, args[0], password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[OK] admin %s created (ID: %d)\n", account.Username, account.ID)
				return nil
			})
		},
	}
}

// CreateUserCmd returns the account creation command
func CreateUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user <username> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			return withAdmin(cmd, func(ctx context.Context, app *Application, session *models.Session) error {
				account, err := app.admin.CreateAccount(ctx, session, &models.CreateAccountRequest{
					Username: args[0],
					Password: args[1],
					Role:     models.Role(role),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[OK] %s %s created (ID: %d)\n", account.Role, account.Username, account.ID)
				return nil
			})
		},
	}

	cmd.Flags().String("role", string(models.RoleStudent), "ADMIN, INSTRUCTOR or STUDENT")
	return cmd
}

// UnlockCmd returns the account unlock command
func UnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <account-id>",
		Short: "Unlock a locked account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withAdmin(cmd, func(ctx context.Context, app *Application, session *models.Session) error {
				if err := app.admin.UnlockAccount(ctx, session, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[OK] account %d unlocked\n", id)
				return nil
			})
		},
	}
}

// DeleteUserCmd returns the account deletion command
func DeleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <account-id>",
		Short: "Delete an account with no enrollments or sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withAdmin(cmd, func(ctx context.Context, app *Application, session *models.Session) error {
				if err := app.admin.DeleteAccount(ctx, session, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[OK] account %d deleted\n", id)
				return nil
			})
		},
	}
}

// MaintenanceCmd returns the maintenance toggle command
func MaintenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "maintenance [on|off]",
		Short:     "Show or change maintenance mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, app *Application, session *models.Session) error {
				if len(args) == 1 {
					if args[0] != "on" && args[0] != "off" {
						return fmt.Errorf("expected on or off, got %q", args[0])
					}
					if err := app.admin.SetMaintenance(ctx, session, args[0] == "on"); err != nil {
						return err
					}
				}
				on, err := app.admin.MaintenanceOn(ctx, session)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "maintenance: %s\n", onOff(on))
				return nil
			})
		},
	}
}

// SetSettingCmd returns the settings command
func SetSettingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-setting <key> [value]",
		Short: "Set a global setting; omit the value to clear a deadline",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			}
			return withAdmin(cmd, func(ctx context.Context, app *Application, session *models.Session) error {
				if err := app.admin.SetSetting(ctx, session, args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[OK] %s updated\n", args[0])
				return nil
			})
		},
	}
}

// CreateCourseCmd returns the course creation command
func CreateCourseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-course <code> <title>",
		Short: "Create a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			credits, _ := cmd.Flags().GetInt("credits")
			return withAdmin(cmd, func(ctx context.Context, app *Application, session *models.Session) error {
				course, err := app.admin.CreateCourse(ctx, session, &models.CreateCourseRequest{
					Code:    args[0],
					Title:   args[1],
					Credits: credits,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[OK] course %s created (ID: %d)\n", course.Code, course.ID)
				return nil
			})
		},
	}

	cmd.Flags().Int("credits", 4, "Credit count")
	return cmd
}

// CreateSectionCmd returns the section creation command
func CreateSectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-section",
		Short: "Create a section of a course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			req := &models.CreateSectionRequest{}
			req.CourseID, _ = flags.GetInt("course")
			req.InstructorID, _ = flags.GetInt("instructor")
			req.DayOfWeek, _ = flags.GetString("day")
			req.StartTime, _ = flags.GetString("start")
			req.EndTime, _ = flags.GetString("end")
			req.Room, _ = flags.GetString("room")
			req.Capacity, _ = flags.GetInt("capacity")
			req.Semester, _ = flags.GetString("semester")
			req.Year, _ = flags.GetInt("year")

			return withAdmin(cmd, func(ctx context.Context, app *Application, session *models.Session) error {
				for flag, dst := range map[string]**time.Time{
					"registration-deadline": &req.RegistrationDeadline,
					"drop-deadline":         &req.DropDeadline,
				} {
					raw, _ := flags.GetString(flag)
					if raw == "" {
						continue
					}
					at, err := app.policy.ParseDeadline(raw)
					if err != nil {
						return fmt.Errorf("--%s: %w", flag, err)
					}
					*dst = &at
				}

				section, err := app.admin.CreateSection(ctx, session, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[OK] section created (ID: %d)\n", section.ID)
				return nil
			})
		},
	}

	cmd.Flags().Int("course", 0, "Course ID")
	cmd.Flags().Int("instructor", 0, "Instructor account ID")
	cmd.Flags().String("day", "MON", "Meeting day: MON..SUN")
	cmd.Flags().String("start", "09:00", "Start time HH:MM")
	cmd.Flags().String("end", "10:30", "End time HH:MM")
	cmd.Flags().String("room", "", "Room")
	cmd.Flags().Int("capacity", 60, "Seat capacity")
	cmd.Flags().String("semester", "MONSOON", "Semester name")
	cmd.Flags().Int("year", time.Now().Year(), "Academic year")
	cmd.Flags().String("registration-deadline", "", "Per-section registration deadline")
	cmd.Flags().String("drop-deadline", "", "Per-section drop deadline")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("instructor")
	return cmd
}

// SetCapacityCmd returns the capacity update command
func SetCapacityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-capacity <section-id> <capacity>",
		Short: "Change a section's capacity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			capacity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("capacity must be a number: %w", err)
			}
			return withAdmin(cmd, func(ctx context.Context, app *Application, session *models.Session) error {
				if err := app.admin.UpdateSectionCapacity(ctx, session, id, capacity); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[OK] section %d capacity set to %d\n", id, capacity)
				return nil
			})
		},
	}
}

// withAdmin signs in with --as and runs fn with the admin session.
func withAdmin(cmd *cobra.Command, fn func(context.Context, *Application, *models.Session) error) error {
	username, _ := cmd.Flags().GetString("as")
	if username == "" {
		return fmt.Errorf("--as is required")
	}
	password, err := adminPassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, app *Application) error {
		session, err := app.auth.LoginAs(ctx, &models.LoginRequest{
			Username: username,
			Password: password,
			Role:     models.RoleAdmin,
		})
		if err != nil {
			return err
		}
		defer app.auth.Logout(ctx, session)

		return fn(ctx, app, session)
	})
}

func adminPassword(cmd *cobra.Command, prompt string) (string, error) {
	if pw, _ := cmd.Flags().GetString("password"); pw != "" {
		return pw, nil
	}
	if pw := os.Getenv("UNIV_ERP_PASSWORD"); pw != "" {
		return pw, nil
	}
	return readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt)
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
