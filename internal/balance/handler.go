package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/mcaceresg1/ledger-reports/internal/platform/httpx"
	"github.com/mcaceresg1/ledger-reports/internal/tenant"
)

// Enqueuer hands a snapshot rebuild to the background queue and returns the
// queued task id.
type Enqueuer interface {
	EnqueueRefresh(ctx context.Context, tenantCode string, w Window) (string, error)
}

// Handler serves the trial-balance HTTP surface.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	mat          *Materializer
	enqueue      Enqueuer
	validate     *validator.Validate
	exportLimit  int
	exportWindow time.Duration
}

// NewHandler builds Handler. enqueue may be nil, in which case async
// generation requests are served synchronously.
func NewHandler(logger *slog.Logger, service *Service, mat *Materializer, enqueue Enqueuer, exportLimit int, exportWindow time.Duration) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		mat:          mat,
		enqueue:      enqueue,
		validate:     validator.New(),
		exportLimit:  exportLimit,
		exportWindow: exportWindow,
	}
}

// MountRoutes registers the report routes under a tenant-scoped subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/tenants/{tenant}/trial-balance", func(r chi.Router) {
		r.Post("/", h.generate)
		r.Get("/", h.query)
		r.Group(func(r chi.Router) {
			if h.exportLimit > 0 {
				r.Use(httprate.LimitByIP(h.exportLimit, h.exportWindow))
			}
			r.Get("/export.xlsx", h.export)
		})
	})
}

type generateRequest struct {
	StartDate  string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Book       string `json:"book" validate:"omitempty,oneof=F A Fiscal Administrative Both"`
	ReportType string `json:"reportType" validate:"omitempty,oneof=Preliminary Official"`
	Async      bool   `json:"async"`
}

type queuedResponse struct {
	TaskID      string `json:"taskId"`
	Tenant      string `json:"tenant"`
	Fingerprint string `json:"fingerprint"`
}

func parseBook(s string) (Book, error) {
	switch s {
	case "F", "Fiscal":
		return BookFiscal, nil
	case "A", "Administrative":
		return BookAdministrative, nil
	case "", "Both":
		return BookBoth, nil
	}
	return "", fmt.Errorf("%w: book %q", ErrInvalidWindow, s)
}

func parseReportType(s string) (ReportType, error) {
	switch s {
	case "", string(ReportPreliminary):
		return ReportPreliminary, nil
	case string(ReportOfficial):
		return ReportOfficial, nil
	}
	return "", fmt.Errorf("%w: report type %q", ErrInvalidWindow, s)
}

func buildWindow(startDate, endDate, book, reportType string) (Window, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start date %q", ErrInvalidWindow, startDate)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end date %q", ErrInvalidWindow, endDate)
	}
	b, err := parseBook(book)
	if err != nil {
		return Window{}, err
	}
	rt, err := parseReportType(reportType)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: start, End: end, Book: b, ReportType: rt}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func queryFilters(r *http.Request) Filters {
	q := r.URL.Query()
	return Filters{
		AccountPrefix:    q.Get("account"),
		CostCenterPrefix: q.Get("costCenter"),
		Type:             q.Get("type"),
		DetailedType:     q.Get("detailedType"),
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidWindow), errors.Is(err, tenant.ErrInvalidSchema):
		httpx.BadRequest(w, err.Error())
	case errors.Is(err, ErrSnapshotMissing):
		httpx.Problem(w, http.StatusConflict, "Snapshot Missing", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "trial balance request failed",
			"path", r.URL.Path, "err", err)
		httpx.Internal(w)
	}
}

// generate rebuilds the tenant snapshot for the requested window.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	window, err := buildWindow(req.StartDate, req.EndDate, req.Book, req.ReportType)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	tenantCode := chi.URLParam(r, "tenant")
	if req.Async && h.enqueue != nil {
		taskID, err := h.enqueue.EnqueueRefresh(r.Context(), tenantCode, window)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, queuedResponse{
			TaskID:      taskID,
			Tenant:      tenantCode,
			Fingerprint: window.Fingerprint(),
		})
		return
	}

	run, err := h.mat.Materialize(r.Context(), tenantCode, window)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, run)
}

// query serves one report page, materializing first when the snapshot is
// missing or was generated for a different window.
func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := buildWindow(q.Get("startDate"), q.Get("endDate"), q.Get("book"), q.Get("reportType"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	result, err := h.service.Query(r.Context(), QueryRequest{
		Tenant:   chi.URLParam(r, "tenant"),
		Window:   window,
		Filters:  queryFilters(r),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// export streams the report as a spreadsheet attachment.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := buildWindow(q.Get("startDate"), q.Get("endDate"), q.Get("book"), q.Get("reportType"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	tenantCode := chi.URLParam(r, "tenant")

	rows, _, err := h.service.Export(r.Context(), ExportRequest{
		Tenant: tenantCode,
		Window: window,
		Limit:  limit,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	filename := fmt.Sprintf("trial-balance-%s-%s-%s.xlsx",
		tenantCode, window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := WriteXLSX(w, rows); err != nil {
		h.logger.ErrorContext(r.Context(), "spreadsheet write failed", "tenant", tenantCode, "err", err)
	}
}
