// Command analyticsctl is the operator CLI for the study analytics store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/study-analytics/config"
	"github.com/alem-hub/study-analytics/internal/bootstrap"
	"github.com/alem-hub/study-analytics/internal/domain/analytics"
)

// opener builds the runtime a command works against.
type opener func(ctx context.Context, migrate bool) (*bootstrap.Runtime, error)

func main() {
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context, migrate bool) (*bootstrap.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if migrate {
		cfg.Database.AutoMigrate = true
	}
	// stdout carries command output.
	log := bootstrap.SetupLogger(cfg, os.Stderr)
	return bootstrap.Open(ctx, cfg, log, bootstrap.Options{})
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "analyticsctl",
		Short:         "Inspect and repair study analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCmd(open))
	root.AddCommand(newShowCmd(open))
	root.AddCommand(newResetCmd(open))
	root.AddCommand(newAddTimeCmd(open))
	root.AddCommand(newTrackCmd(open))
	root.AddCommand(newJobsCmd(open))
	return root
}

// withRuntime opens a runtime for one command and closes it afterwards.
func withRuntime(cmd *cobra.Command, open opener, migrate bool, fn func(context.Context, *bootstrap.Runtime) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx, migrate)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, rt)
}

func newMigrateCmd(open opener) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, true, func(_ context.Context, rt *bootstrap.Runtime) error {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", rt.Config.Database.Driver)
				return nil
			})
		},
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				out := cmd.OutOrStdout()
				if rt.Migrator == nil {
					_, _ = fmt.Fprintf(out, "schema is created on open (%s)\n", rt.Config.Database.Driver)
					return nil
				}
				migrations, err := rt.Migrator.Status(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
				for _, m := range migrations {
					applied := "pending"
					if m.IsApplied {
						applied = m.AppliedAt.Format(time.RFC3339)
					}
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
				}
				return tw.Flush()
			})
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if rt.Migrator == nil {
					return fmt.Errorf("rollback needs the %s driver, have %s",
						config.DriverPostgres, rt.Config.Database.Driver)
				}
				if err := rt.Migrator.Rollback(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "rolled back latest migration")
				return nil
			})
		},
	})

	return migrate
}

func newJobsCmd(open opener) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect or run the cache maintenance jobs",
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "info <job>",
		Short: "Describe a registered job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, false, func(_ context.Context, rt *bootstrap.Runtime) error {
				sched, err := bootstrap.NewScheduler(rt)
				if err != nil {
					return err
				}
				info, err := sched.GetJobInfo(args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", info.Name, info.Schedule, info.Description)
				return nil
			})
		},
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "run <job>",
		Short: "Run a job once against the configured cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				sched, err := bootstrap.NewScheduler(rt)
				if err != nil {
					return err
				}
				result, err := sched.RunNow(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s finished in %s\n", result.JobName, result.Duration)
				return nil
			})
		},
	})

	return jobsCmd
}

func newShowCmd(open opener) *cobra.Command {
	var view string

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a computed analytics view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				var (
					v   any
					err error
				)
				switch strings.ToLower(view) {
				case "realtime":
					v, err = rt.Engine.GetRealTimeAnalytics(ctx, args[0])
				case "today":
					v, err = rt.Engine.GetTodayProgress(ctx, args[0])
				case "week":
					v, err = rt.Engine.GetWeeklyProgress(ctx, args[0])
				case "month":
					v, err = rt.Engine.GetMonthlyProgress(ctx, args[0])
				case "insights":
					v, err = rt.Engine.GetStudyInsights(ctx, args[0])
				default:
					return fmt.Errorf("unknown view %q: want realtime|today|week|month|insights", view)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), v)
			})
		},
	}
	show.Flags().StringVar(&view, "view", "realtime", "view: realtime|today|week|month|insights")
	return show
}

func newResetCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Zero today's progress and print the fresh analytics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				fresh, err := rt.Engine.ResetAndGetFreshAnalytics(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), fresh)
			})
		},
	}
}

func newAddTimeCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "add-time <user-id> <seconds>",
		Short: "Add study time to today's row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("seconds must be an integer: %w", err)
			}
			return withRuntime(cmd, open, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				row, err := rt.Engine.AddStudyTime(ctx, args[0], seconds)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %ds total, %d activities\n",
					row.UserID, row.Date, row.TotalTimeSpent, row.TotalActivities)
				return nil
			})
		},
	}
}

func newTrackCmd(open opener) *cobra.Command {
	var meta analytics.ActivityMeta

	track := &cobra.Command{
		Use:   "track <user-id> <activity-type>",
		Short: "Record a platform activity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			activity := analytics.ActivityType(args[1])
			if !activity.Valid() {
				return fmt.Errorf("unknown activity type %q", args[1])
			}
			return withRuntime(cmd, open, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if !rt.Engine.TrackPlatformActivity(ctx, args[0], activity, meta) {
					return fmt.Errorf("activity %s was not accepted", activity)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tracked %s for %s\n", activity, args[0])
				return nil
			})
		},
	}
	track.Flags().BoolVar(&meta.Correct, "correct", false, "answer was correct (question_answered)")
	track.Flags().IntVar(&meta.SessionSeconds, "seconds", 0, "session length in seconds")
	track.Flags().StringVar(&meta.Area, "area", "", "topic area")
	return track
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
