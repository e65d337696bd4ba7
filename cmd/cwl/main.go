package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xuri/excelize/v2"

	"crewline/internal/app"
	"crewline/internal/db"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/export"
	"crewline/internal/pdfgen"
	"crewline/internal/schedule"
	"crewline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cwl",
	Short: "Crewline CLI",
	Long: `Crewline manages packing-plant crew rosters: the employee directory with
attendance stamps, weekly per-microteam assignment grids, and the lock
window that keeps a recently assigned employee with their team for a few
days. Saved grids claim their employees for the save date, which is what
makes an employee ineligible for every other microteam on that date.`,
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
	_ = godotenv.Load()
	viper.SetEnvPrefix("CREWLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(employeeCmd())
	rootCmd.AddCommand(attendanceCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(locksCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		Long:  "Writes crewline.yml (default plant catalog, or a copy of --config), then creates the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if err := app.Init(workspace, configFile); err != nil {
				return err
			}
			fmt.Printf("workspace ready: %s (db at %s)\n", workspace, db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "seed the workspace from an existing catalog file")
	return cmd
}

func employeeCmd() *cobra.Command {
	emp := &cobra.Command{Use: "employee", Short: "Manage the employee directory"}
	emp.AddCommand(employeeAddCmd())
	emp.AddCommand(employeeListCmd())
	emp.AddCommand(employeeImportCmd())
	return emp
}

func employeeAddCmd() *cobra.Command {
	var badge, first, last, dept, status string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				emp, err := e.CreateEmployee(ctx, engine.EmployeeCreateOptions{
					EmployeeID: badge,
					FirstName:  first,
					LastName:   last,
					Department: dept,
					WorkStatus: status,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(emp)
			})
		},
	}
	cmd.Flags().StringVar(&badge, "id", "", "employee badge id")
	cmd.Flags().StringVar(&first, "first-name", "", "first name")
	cmd.Flags().StringVar(&last, "last-name", "", "last name")
	cmd.Flags().StringVar(&dept, "department", "", "department")
	cmd.Flags().StringVar(&status, "work-status", domain.WorkStatusRegular, "REGULAR, PROBATIONARY, CASUAL or ADD CREW")
	return cmd
}

func employeeListCmd() *cobra.Command {
	var startDate, endDate string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employees, optionally with attendance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				emps, err := e.Directory(ctx, startDate, endDate)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(emps)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Department", "Status", "Days stamped"})
				for _, emp := range emps {
					tw.AppendRow(table.Row{emp.EmployeeID, emp.FullName(), emp.Department, emp.WorkStatus, len(emp.Attendances)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "range end (YYYY-MM-DD)")
	return cmd
}

// employeeImportCmd bulk-loads the directory from a workbook whose first tab
// carries columns: employee_id, first_name, last_name, department, work_status.
func employeeImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import employees from an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			f, err := excelize.OpenFile(file)
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := f.GetRows(f.GetSheetName(0))
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				imported, skipped := 0, 0
				for i, row := range rows {
					if i == 0 || len(row) < 3 {
						continue
					}
					opts := engine.EmployeeCreateOptions{
						EmployeeID: strings.TrimSpace(row[0]),
						FirstName:  strings.TrimSpace(row[1]),
						LastName:   strings.TrimSpace(row[2]),
						ActorID:    viper.GetString("actor-id"),
					}
					if len(row) > 3 {
						opts.Department = strings.TrimSpace(row[3])
					}
					if len(row) > 4 {
						opts.WorkStatus = strings.TrimSpace(row[4])
					}
					if _, err := e.CreateEmployee(ctx, opts); err != nil {
						fmt.Printf("row %d skipped: %v\n", i+1, err)
						skipped++
						continue
					}
					imported++
				}
				fmt.Printf("imported %d, skipped %d\n", imported, skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "workbook path")
	return cmd
}

func attendanceCmd() *cobra.Command {
	att := &cobra.Command{Use: "attendance", Short: "Attendance stamps"}
	var badge, day, clock, source string
	log := &cobra.Command{
		Use:   "log",
		Short: "Record a scan (first of the day sets time in, later scans move time out)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				dt, err := e.LogAttendance(ctx, badge, day, clock, source, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(dt)
			})
		},
	}
	log.Flags().StringVar(&badge, "id", "", "employee badge id")
	log.Flags().StringVar(&day, "day", "", "date (YYYY-MM-DD), default today")
	log.Flags().StringVar(&clock, "time", "", "clock (HH:MM), default now")
	log.Flags().StringVar(&source, "source", "manual", "scan source")
	att.AddCommand(log)
	return att
}

func settingsCmd() *cobra.Command {
	set := &cobra.Command{Use: "settings", Short: "Lock-period configuration"}
	set.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active lock window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.GetSettings(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	})
	var days int
	setLock := &cobra.Command{
		Use:   "set",
		Short: "Set the lock window (0, 7 or 14 days)",
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := domain.LockPeriodFromDays(days)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				seven, fourteen := period.Flags()
				s, err := e.UpdateSettings(ctx, seven, fourteen, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	setLock.Flags().IntVar(&days, "days", 7, "lock window in days")
	set.AddCommand(setLock)
	return set
}

func locksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locks",
		Short: "List employees inside the active lock window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.GetSettings(ctx)
				if err != nil {
					return err
				}
				period, err := domain.LockPeriodFromDays(s.LockPeriodDays)
				if err != nil {
					return err
				}
				records, err := e.LockedEmployees(ctx, period)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(records)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Employee", "Assigned", "Locked until", "Days remaining"})
				for _, lr := range records {
					tw.AppendRow(table.Row{lr.EmployeeName, lr.AssignmentDate, lr.LockUntil, lr.DaysRemaining})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func rosterCmd() *cobra.Command {
	roster := &cobra.Command{Use: "roster", Short: "Weekly assignment grids"}
	roster.AddCommand(rosterShowCmd())
	roster.AddCommand(rosterSaveCmd())
	roster.AddCommand(rosterForDateCmd())
	roster.AddCommand(rosterClaimsCmd())
	roster.AddCommand(rosterExportCmd())
	return roster
}

func rosterClaimsCmd() *cobra.Command {
	var name, from, to string
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "Show which microteam claimed an employee per day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if name == "" {
					return errors.New("--name is required")
				}
				if to == "" {
					to = time.Now().UTC().Format(schedule.DateLayout)
				}
				if from == "" {
					toDay, err := schedule.ParseDate(to)
					if err != nil {
						return err
					}
					from = toDay.AddDate(0, 0, -13).Format(schedule.DateLayout)
				}
				claims, err := e.Repo.EmployeeClaims(ctx, name, from, to)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(claims)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle(fmt.Sprintf("%s, %s to %s", name, from, to))
				tw.AppendHeader(table.Row{"Day", "Microteam", "Add crew"})
				for _, c := range claims {
					tw.AppendRow(table.Row{c.Day, c.Microteam, c.IsAddCrew})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "employee full name")
	cmd.Flags().StringVar(&from, "from", "", "range start (YYYY-MM-DD), default 14 days back")
	cmd.Flags().StringVar(&to, "to", "", "range end (YYYY-MM-DD), default today")
	return cmd
}

func rosterSaveCmd() *cobra.Command {
	var microteam, date, file, preparedBy, checkedBy string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Build and store a weekly grid from an assignment file",
		Long: `Reads slot assignments from a JSON file, replays them through the
eligibility and lock rules, and stores the resulting grid. The file holds
{"assignments":[{"employee_name":...,"position_field":...,"slot_index":0},...]}
with optional prepared_by, checked_by and leave_rows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if date == "" {
					date = time.Now().UTC().Format(schedule.DateLayout)
				}
				s, err := schedule.NewSession(e.Config.Positions, microteam, date)
				if err != nil {
					return err
				}
				emps, err := e.Directory(ctx, s.Days[0], s.Days[6])
				if err != nil {
					return err
				}
				s.SetEmployees(emps)

				settings, err := e.GetSettings(ctx)
				if err != nil {
					return err
				}
				period, err := domain.LockPeriodFromDays(settings.LockPeriodDays)
				if err != nil {
					return err
				}
				if period.Active() {
					records, err := e.LockedEmployees(ctx, period)
					if err != nil {
						return err
					}
					s.SetLocks(records)
				}
				_, membership, err := e.WeekMembership(ctx, date)
				if err != nil {
					return err
				}
				s.RebuildIndex(membership)

				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				var doc struct {
					Assignments []struct {
						EmployeeName string `json:"employee_name"`
						Position     string `json:"position_field"`
						SlotIndex    int    `json:"slot_index"`
					} `json:"assignments"`
					PreparedBy string            `json:"prepared_by"`
					CheckedBy  string            `json:"checked_by"`
					LeaveRows  map[string]string `json:"leave_rows"`
				}
				if err := json.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
				for _, a := range doc.Assignments {
					ref := schedule.SlotRef{Position: a.Position, Slot: a.SlotIndex}
					if err := s.Assign(ref, a.EmployeeName); err != nil {
						return err
					}
				}
				s.PreparedBy = doc.PreparedBy
				if preparedBy != "" {
					s.PreparedBy = preparedBy
				}
				s.CheckedBy = doc.CheckedBy
				if checkedBy != "" {
					s.CheckedBy = checkedBy
				}
				for k, v := range doc.LeaveRows {
					s.LeaveRows[k] = v
				}

				payload, err := s.BuildSave()
				if err != nil {
					return err
				}
				if err := e.SaveSheet(ctx, engine.SaveSheetOptions{
					Microteam:     microteam,
					WeekStartDate: payload.WeekStartDate,
					DayOfSave:     payload.DayOfSave,
					Assignments:   payload.Assignments,
					PreparedBy:    payload.PreparedBy,
					CheckedBy:     payload.CheckedBy,
					LeaveRows:     payload.LeaveRows,
					ActorID:       viper.GetString("actor-id"),
				}); err != nil {
					return err
				}
				fmt.Printf("saved %s for week of %s\n", microteam, payload.WeekStartDate)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&microteam, "microteam", "", "microteam name")
	cmd.Flags().StringVar(&date, "date", "", "working date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&file, "file", "", "assignment file (JSON)")
	cmd.Flags().StringVar(&preparedBy, "prepared-by", "", "override the file's prepared_by")
	cmd.Flags().StringVar(&checkedBy, "checked-by", "", "override the file's checked_by")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func rosterShowCmd() *cobra.Command {
	var microteam, week string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a saved weekly grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				weekStart, err := resolveWeek(week, e)
				if err != nil {
					return err
				}
				sheet, err := e.Sheet(ctx, microteam, weekStart)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sheet)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle(fmt.Sprintf("%s / week of %s (saved %s)", sheet.Microteam, sheet.WeekStart, sheet.DayOfSave))
				tw.AppendHeader(table.Row{"Position", "Slot", "Employee", "Add crew"})
				for _, rec := range sheet.Records {
					tw.AppendRow(table.Row{rec.Position, rec.SlotIndex + 1, rec.EmployeeName, rec.IsAddCrew})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&microteam, "microteam", "", "microteam name")
	cmd.Flags().StringVar(&week, "week", "", "any date in the week (YYYY-MM-DD), default this week")
	return cmd
}

func rosterForDateCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "for-date",
		Short: "Show who each microteam claimed for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if date == "" {
					date = time.Now().UTC().Format(schedule.DateLayout)
				}
				m, err := e.DayMembership(ctx, date)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle(date)
				tw.AppendHeader(table.Row{"Microteam", "Employee", "Add crew"})
				teams := make([]string, 0, len(m.Microteams))
				for team := range m.Microteams {
					teams = append(teams, team)
				}
				sort.Strings(teams)
				for _, team := range teams {
					for _, name := range m.Microteams[team] {
						tw.AppendRow(table.Row{team, name, false})
					}
					for _, name := range m.AddCrew[team] {
						tw.AppendRow(table.Row{team, name, true})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD), default today")
	return cmd
}

func rosterExportCmd() *cobra.Command {
	var microteam, week, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a saved grid as PDF or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				weekStart, err := resolveWeek(week, e)
				if err != nil {
					return err
				}
				sheet, err := e.Sheet(ctx, microteam, weekStart)
				if err != nil {
					return err
				}
				var data []byte
				switch format {
				case "pdf":
					data, err = pdfgen.Render(sheet, e.Config)
				case "xlsx":
					data, err = export.Workbook(sheet, e.Config)
				default:
					return fmt.Errorf("unknown format %q (pdf or xlsx)", format)
				}
				if err != nil {
					return err
				}
				if out == "" {
					out = fmt.Sprintf("roster-%s-%s.%s", weekStart, sanitize(microteam), format)
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&microteam, "microteam", "", "microteam name")
	cmd.Flags().StringVar(&week, "week", "", "any date in the week (YYYY-MM-DD), default this week")
	cmd.Flags().StringVar(&format, "format", "pdf", "pdf or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output path")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Audit event log"}
	var limit int
	var evtType string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.LatestEvents(ctx, limit, evtType, "", "")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor", "Payload"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.TS, ev.Type, ev.EntityKind + "/" + ev.EntityID, ev.ActorID, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "max events")
	tail.Flags().StringVar(&evtType, "type", "", "filter by event type")
	log.AddCommand(tail)
	return log
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			e, conn, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			log := logrus.New()
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			e.Log = log
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Log: log})
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
			log.Infof("serving Crewline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, conn, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func resolveWeek(week string, _ engine.Engine) (string, error) {
	if week == "" {
		week = time.Now().UTC().Format(schedule.DateLayout)
	}
	return schedule.WeekStartISO(week)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
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
