package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/config"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/db"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/dispatch"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/engine"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/export"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/migrate"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/notify"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ait",
	Short: "AI Activity Tracker CLI",
	Long: `Track activities handed to AI agents on a kanban board.
- Workspace: the .aitracker directory holding the database; aitracker.yml next to it configures dispatch and notifications.
- Activities: board cards that flow todo -> in-progress -> done, with per-card timers and iteration counts.
- Dispatch: creating a todo activity hands it to the configured agent; the agent reports back through a completion callback.
- Notifications: every status change can ping a chat channel, best effort.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("AIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(serveCmd())
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{
		Use:   "activity",
		Short: "Manage activities",
		Long:  "Activities are the board cards. Creating one in todo dispatches it to the routed agent; the agent reports completion back, or you complete it yourself.",
	}
	act.AddCommand(activityCreateCmd())
	act.AddCommand(activityListCmd())
	act.AddCommand(activityShowCmd())
	act.AddCommand(activityUpdateCmd())
	act.AddCommand(activityDeleteCmd())
	act.AddCommand(activityStartCmd())
	act.AddCommand(activityStopCmd())
	act.AddCommand(activityIterateCmd())
	act.AddCommand(activityExecuteCmd())
	act.AddCommand(activityRetryCmd())
	act.AddCommand(activityCompleteCmd())
	act.AddCommand(activityEventsCmd())
	act.AddCommand(activityReorderCmd())
	return act
}

func activityReorderCmd() *cobra.Command {
	var items []string
	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Apply board placements",
		Long:  "Each --item takes id:status:position, applied in order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(items) == 0 {
				return fmt.Errorf("at least one --item required")
			}
			var placements []engine.ReorderItem
			for _, raw := range items {
				parts := strings.Split(raw, ":")
				if len(parts) != 3 {
					return fmt.Errorf("invalid item %q, want id:status:position", raw)
				}
				pos, err := strconv.Atoi(parts[2])
				if err != nil {
					return fmt.Errorf("invalid position in %q: %w", raw, err)
				}
				placements = append(placements, engine.ReorderItem{ID: parts[0], Status: parts[1], Position: pos})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Reorder(ctx, placements)
			})
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", []string{}, "placement id:status:position (repeatable)")
	return cmd
}

func activityCreateCmd() *cobra.Command {
	var opts engine.CreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateActivity(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.AITool, "tool", "", "ai tool handling this activity")
	cmd.Flags().StringVar(&opts.Project, "project", "", "project tag")
	cmd.Flags().StringVar(&opts.Status, "status", "", "initial status (todo, in-progress, done)")
	cmd.Flags().IntVar(&opts.Position, "position", 0, "position within the status column")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func activityListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities in board order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.GetAll(ctx)
				if err != nil {
					return err
				}
				if status != "" {
					filtered := items[:0]
					for _, a := range items {
						if a.Status == status {
							filtered = append(filtered, a)
						}
					}
					items = filtered
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Tool", "Project", "Iter", "Outcome"})
				for _, a := range items {
					outcome := ""
					if a.Outcome != nil {
						outcome = *a.Outcome
					}
					tw.AppendRow(table.Row{a.ID, a.Title, a.Status, a.AITool, a.Project, a.IterationCount, outcome})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func activityShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityUpdateCmd() *cobra.Command {
	var title, description, tool, project, status, calendarID string
	var position int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update activity fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts engine.UpdateOptions
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("tool") {
				opts.AITool = &tool
			}
			if cmd.Flags().Changed("project") {
				opts.Project = &project
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("position") {
				opts.Position = &position
			}
			if cmd.Flags().Changed("calendar-event-id") {
				opts.CalendarEventID = &calendarID
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.UpdateActivity(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&tool, "tool", "", "ai tool")
	cmd.Flags().StringVar(&project, "project", "", "project tag")
	cmd.Flags().StringVar(&status, "status", "", "status (todo, in-progress, done)")
	cmd.Flags().IntVar(&position, "position", 0, "position within the status column")
	cmd.Flags().StringVar(&calendarID, "calendar-event-id", "", "calendar event id")
	return cmd
}

func activityDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteActivity(ctx, args[0])
			})
		},
	}
	return cmd
}

func activityStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start the activity timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.StartTimer(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop the activity timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.StopTimer(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityIterateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iterate <id>",
		Short: "Increment the iteration counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.IncrementIteration(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityExecuteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <id>",
		Short: "Hand the activity to the agent now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Execute(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Reset the activity and dispatch it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Retry(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityCompleteCmd() *cobra.Command {
	var outcome, notes string
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark the activity done with an outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Complete(ctx, args[0], outcome, notes)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "", "outcome (success, partial, failed); defaults to success")
	cmd.Flags().StringVar(&notes, "notes", "", "outcome notes")
	return cmd
}

func activityEventsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "events <id>",
		Short: "Show the status-change log, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListEvents(ctx, args[0], n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Change"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.TS, evt.Label})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func boardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if viper.GetBool("json") {
					items, err := e.Repo.GetAll(ctx)
					if err != nil {
						return err
					}
					return printJSON(export.Summarize(items))
				}
				counts, err := e.Repo.CountByStatus(ctx)
				if err != nil {
					return err
				}
				for _, status := range []string{domain.StatusTodo, domain.StatusInProgress, domain.StatusDone} {
					fmt.Printf("%s: %d\n", domain.HumanStatus(status), counts[status])
				}
				items, err := e.Repo.GetAll(ctx)
				if err != nil {
					return err
				}
				s := export.Summarize(items)
				fmt.Printf("Total time: %s\n", (time.Duration(s.TotalTimeSpent) * time.Second).String())
				for outcome, c := range s.Outcomes {
					fmt.Printf("Outcome %s: %d\n", outcome, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func exportCmd() *cobra.Command {
	exp := &cobra.Command{Use: "export", Short: "Export the board"}
	exp.AddCommand(exportRenderCmd("csv", "Export activities as CSV", func(w *os.File, acts []domain.Activity) error {
		return export.CSV(w, acts)
	}))
	exp.AddCommand(exportRenderCmd("report", "Export a plaintext board report", func(w *os.File, acts []domain.Activity) error {
		export.Report(w, acts)
		return nil
	}))
	exp.AddCommand(exportRenderCmd("calendar", "Export completed activities as an ICS feed", func(w *os.File, acts []domain.Activity) error {
		export.Calendar(w, acts)
		return nil
	}))
	return exp
}

func exportRenderCmd(name, short string, render func(*os.File, []domain.Activity) error) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.GetAll(ctx)
				if err != nil {
					return err
				}
				w := os.Stdout
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return render(w, items)
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write to file instead of stdout")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default aitracker.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	return cfg
}

func notifyCmd() *cobra.Command {
	n := &cobra.Command{Use: "notify", Short: "Control the notification switch"}
	setEnabled := func(enabled bool) error {
		workspace := viper.GetString("workspace")
		cfg, err := config.Load(workspace)
		if err != nil {
			return err
		}
		cfg.Notifications.Enabled = enabled
		if err := config.Save(workspace, cfg); err != nil {
			return err
		}
		fmt.Printf("Notifications %s\n", map[bool]string{true: "enabled", false: "disabled"}[enabled])
		return nil
	}
	n.AddCommand(&cobra.Command{
		Use:   "on",
		Short: "Enable notifications",
		RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(true) },
	})
	n.AddCommand(&cobra.Command{
		Use:   "off",
		Short: "Disable notifications",
		RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(false) },
	})
	n.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the notification switch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]bool{"enabled": cfg.Notifications.Enabled})
			}
			fmt.Printf("enabled: %t\n", cfg.Notifications.Enabled)
			return nil
		},
	})
	return n
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := buildEngine(conn, cfg)
			poolSize := cfg.Dispatch.PoolSize
			if poolSize <= 0 {
				poolSize = 1
			}
			pool := dispatch.NewPool(poolSize)
			defer pool.Close()
			e.Pool = pool
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving AI Activity Tracker API on http://%s%s (OpenAPI at /openapi.json)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

// --- helpers ---

// withEngine opens the workspace database and runs fn with a fully wired
// engine. Side effects run inline so the process does not exit with dispatch
// or notification work still in flight.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := buildEngine(conn, cfg)
	e.Detach = func(task func()) { task() }
	return fn(ctx, e)
}

func buildEngine(conn *sql.DB, cfg *config.Config) engine.Engine {
	e := engine.New(conn, cfg)
	notifier := notify.New(notify.ExecSender{Command: cfg.Notifications.Command}, cfg.Notifications.Channel, cfg.Notifications.Enabled)
	if cfg.Notifications.TimeoutSeconds > 0 {
		notifier.Timeout = time.Duration(cfg.Notifications.TimeoutSeconds) * time.Second
	}
	e.Notifier = notifier
	if cfg.Dispatch.Command != "" {
		e.Dispatcher = dispatch.FromConfig(cfg)
	}
	return e
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
