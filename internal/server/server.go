package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/export"
	"crewline/internal/pdfgen"
	"crewline/internal/repo"
	"crewline/internal/schedule"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Log      *logrus.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"conflict"`
	Message string         `json:"message" example:"already assigned to another microteam on 2025-11-10"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Crewline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(log))
	hcfg := huma.DefaultConfig("Crewline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerEmployees(group, cfg.Engine)
	registerAttendance(group, cfg.Engine)
	registerSettings(group, cfg.Engine)
	registerDailyChecking(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerReports(router, cfg.Engine, basePath, log)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.status,
				"duration": time.Since(start).String(),
			}).Info("request")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), map[string]any{
			"day": ce.Day, "employee_names": ce.Names,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already exists"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "required"),
		strings.Contains(lowered, "unknown"),
		strings.Contains(lowered, "mutually exclusive"),
		strings.Contains(lowered, "no assignments"),
		strings.Contains(lowered, "not a week start"),
		strings.Contains(lowered, "before start_date"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func actorID(header string) string {
	if header == "" {
		return "api"
	}
	return header
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerEmployees(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-employees-packing-plant",
		Method:      http.MethodGet,
		Path:        "/employees/packing-plant",
		Summary:     "List employees with attendance for a date range",
	}, func(ctx context.Context, input *struct {
		StartDate string `query:"start_date" format:"date"`
		EndDate   string `query:"end_date" format:"date"`
	}) (*struct {
		Body []EmployeeResponse `json:"body"`
	}, error) {
		emps, err := e.Directory(ctx, input.StartDate, input.EndDate)
		if err != nil {
			return nil, handleError(err)
		}
		items := make([]EmployeeResponse, 0, len(emps))
		for _, emp := range emps {
			items = append(items, employeeResponse(emp))
		}
		return &struct {
			Body []EmployeeResponse `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-employee",
		Method:        http.MethodPost,
		Path:          "/employees",
		Summary:       "Register employee",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ActorID string                `header:"X-Actor-Id"`
		Body    CreateEmployeeRequest `json:"body"`
	}) (*struct {
		Body EmployeeResponse `json:"body"`
	}, error) {
		dept := ""
		if input.Body.Department != nil {
			dept = *input.Body.Department
		}
		emp, err := e.CreateEmployee(ctx, engine.EmployeeCreateOptions{
			EmployeeID: input.Body.EmployeeID,
			FirstName:  input.Body.FirstName,
			LastName:   input.Body.LastName,
			Department: dept,
			WorkStatus: input.Body.WorkStatus,
			ActorID:    actorID(input.ActorID),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EmployeeResponse `json:"body"`
		}{Body: employeeResponse(emp)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-employee",
		Method:      http.MethodPatch,
		Path:        "/employees/{id}",
		Summary:     "Update employee",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID      string                `path:"id"`
		ActorID string                `header:"X-Actor-Id"`
		Body    UpdateEmployeeRequest `json:"body"`
	}) (*struct {
		Body EmployeeResponse `json:"body"`
	}, error) {
		emp, err := e.UpdateEmployee(ctx, input.ID, engine.EmployeeUpdateOptions{
			FirstName:  input.Body.FirstName,
			LastName:   input.Body.LastName,
			Department: input.Body.Department,
			WorkStatus: input.Body.WorkStatus,
			ActorID:    actorID(input.ActorID),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EmployeeResponse `json:"body"`
		}{Body: employeeResponse(emp)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-employee",
		Method:        http.MethodDelete,
		Path:          "/employees/{id}",
		Summary:       "Delete employee",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		ActorID string `header:"X-Actor-Id"`
	}) (*struct{}, error) {
		if err := e.DeleteEmployee(ctx, input.ID, actorID(input.ActorID)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAttendance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "log-attendance",
		Method:      http.MethodPost,
		Path:        "/attendance/log",
		Summary:     "Record an attendance scan",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string               `header:"X-Actor-Id"`
		Body    LogAttendanceRequest `json:"body"`
	}) (*struct {
		Body AttendanceResponse `json:"body"`
	}, error) {
		if input.Body.EmployeeID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "employee_id is required", nil)
		}
		dt, err := e.LogAttendance(ctx, input.Body.EmployeeID, input.Body.Day, input.Body.Clock, input.Body.Source, actorID(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		day := input.Body.Day
		if day == "" {
			day = e.Now().UTC().Format(schedule.DateLayout)
		}
		return &struct {
			Body AttendanceResponse `json:"body"`
		}{Body: AttendanceResponse{
			EmployeeID: input.Body.EmployeeID,
			Day:        day,
			TimeIn:     dt.TimeIn,
			TimeOut:    dt.TimeOut,
		}}, nil
	})
}

func registerSettings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/daily-checking/settings",
		Summary:     "Lock-period configuration",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Settings `json:"body"`
	}, error) {
		s, err := e.GetSettings(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Settings `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-settings",
		Method:      http.MethodPost,
		Path:        "/daily-checking/settings",
		Summary:     "Persist lock-period configuration",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ActorID string          `header:"X-Actor-Id"`
		Body    SettingsRequest `json:"body"`
	}) (*struct {
		Body engine.Settings `json:"body"`
	}, error) {
		s, err := e.UpdateSettings(ctx, input.Body.SevenDays, input.Body.FourteenDays, actorID(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Settings `json:"body"`
		}{Body: s}, nil
	})
}

func registerDailyChecking(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "locked-employees",
		Method:      http.MethodGet,
		Path:        "/daily-checking/locked-employees",
		Summary:     "Active lock records",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		LockPeriod int `query:"lock_period" example:"7"`
	}) (*struct {
		Body LockedEmployeesResponse `json:"body"`
	}, error) {
		period, err := domain.LockPeriodFromDays(input.LockPeriod)
		if err != nil {
			return nil, handleError(err)
		}
		records, err := e.LockedEmployees(ctx, period)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LockedEmployeesResponse `json:"body"`
		}{Body: LockedEmployeesResponse{LockedEmployees: records}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "membership-for-date",
		Method:      http.MethodGet,
		Path:        "/daily-checking/for-date",
		Summary:     "Per-date microteam membership",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Date string `query:"date" format:"date" required:"true"`
	}) (*struct {
		Body DayMembershipResponse `json:"body"`
	}, error) {
		m, err := e.DayMembership(ctx, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DayMembershipResponse `json:"body"`
		}{Body: dayMembershipResponse(input.Date, m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "membership-for-week",
		Method:      http.MethodGet,
		Path:        "/daily-checking/for-week",
		Summary:     "Membership for all seven dates of a week",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		WeekStartDate string `query:"week_start_date" format:"date" required:"true"`
	}) (*struct {
		Body WeekMembershipResponse `json:"body"`
	}, error) {
		weekStart, days, err := e.WeekMembership(ctx, input.WeekStartDate)
		if err != nil {
			return nil, handleError(err)
		}
		resp := WeekMembershipResponse{WeekStartDate: weekStart, Days: make(map[string]DayMembershipResponse, len(days))}
		for date, m := range days {
			resp.Days[date] = dayMembershipResponse(date, m)
		}
		return &struct {
			Body WeekMembershipResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sheet-by-microteam",
		Method:      http.MethodGet,
		Path:        "/daily-checking/by-microteam",
		Summary:     "Saved weekly grid for one microteam",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WeekStartDate string `query:"week_start_date" format:"date" required:"true"`
		Microteam     string `query:"microteam" required:"true"`
	}) (*struct {
		Body StoredSheetResponse `json:"body"`
	}, error) {
		st, err := e.SheetFor(ctx, input.Microteam, input.WeekStartDate)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StoredSheetResponse `json:"body"`
		}{Body: StoredSheetResponse{
			WeekStartDate: input.WeekStartDate,
			Microteam:     input.Microteam,
			StoredSheet:   st,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "store-sheet",
		Method:      http.MethodPost,
		Path:        "/daily-checking/store",
		Summary:     "Persist a weekly grid",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ActorID string            `header:"X-Actor-Id"`
		Body    StoreSheetRequest `json:"body"`
	}) (*struct {
		Body StoreResultResponse `json:"body"`
	}, error) {
		microteam := input.Body.Microteam
		if microteam == "" && len(input.Body.Assignments) > 0 {
			microteam = input.Body.Assignments[0].Microteam
		}
		err := e.SaveSheet(ctx, engine.SaveSheetOptions{
			Microteam:     microteam,
			WeekStartDate: input.Body.WeekStartDate,
			DayOfSave:     input.Body.DayOfSave,
			Assignments:   input.Body.Assignments,
			PreparedBy:    input.Body.PreparedBy,
			CheckedBy:     input.Body.CheckedBy,
			LeaveRows:     input.Body.LeaveRows,
			PDFBase64:     input.Body.PDFBase64,
			ActorID:       actorID(input.ActorID),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StoreResultResponse `json:"body"`
		}{Body: StoreResultResponse{
			Success: true,
			Message: fmt.Sprintf("saved %s for week of %s", microteam, input.Body.WeekStartDate),
		}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent audit events",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.Repo.LatestEvents(ctx, input.Limit, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]EventResponse, 0, len(items))
		for _, ev := range items {
			out = append(out, eventResponse(ev))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: out}, nil
	})
}

// registerReports serves binary renditions outside huma: generated PDF and
// XLSX, plus the client-uploaded rendition stored with the last save.
func registerReports(r chi.Router, e engine.Engine, basePath string, log *logrus.Logger) {
	writeErr := func(w http.ResponseWriter, err error) {
		se := handleError(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(se.GetStatus())
		json.NewEncoder(w).Encode(se)
	}
	sheetFromQuery := func(w http.ResponseWriter, r *http.Request) (domain.WeeklySheet, bool) {
		weekStart := r.URL.Query().Get("week_start_date")
		microteam := r.URL.Query().Get("microteam")
		sheet, err := e.Sheet(r.Context(), microteam, weekStart)
		if err != nil {
			writeErr(w, err)
			return domain.WeeklySheet{}, false
		}
		return sheet, true
	}

	r.Get(path.Join(basePath, "reports/roster.pdf"), func(w http.ResponseWriter, r *http.Request) {
		sheet, ok := sheetFromQuery(w, r)
		if !ok {
			return
		}
		data, err := pdfgen.Render(sheet, e.Config)
		if err != nil {
			log.WithError(err).Error("render roster pdf")
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(data)
	})

	r.Get(path.Join(basePath, "reports/roster.xlsx"), func(w http.ResponseWriter, r *http.Request) {
		sheet, ok := sheetFromQuery(w, r)
		if !ok {
			return
		}
		data, err := export.Workbook(sheet, e.Config)
		if err != nil {
			log.WithError(err).Error("render roster workbook")
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Write(data)
	})

	r.Get(path.Join(basePath, "daily-checking/sheet-pdf"), func(w http.ResponseWriter, r *http.Request) {
		data, err := e.SheetPDF(r.Context(), r.URL.Query().Get("microteam"), r.URL.Query().Get("week_start_date"))
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(data)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Crewline API docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({ url: %q, dom_id: "#swagger-ui" });
      };
    </script>
  </body>
</html>`, specURL)
}
