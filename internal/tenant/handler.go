package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mcaceresg1/ledger-reports/internal/platform/httpx"
)

// Lister enumerates active tenants.
type Lister interface {
	List(ctx context.Context) ([]Tenant, error)
}

// Handler exposes the tenant registry read-only.
type Handler struct {
	logger *slog.Logger
	repo   Lister
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, repo Lister) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers tenant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tenants", h.list)
}

type tenantResponse struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// list returns every active tenant. Schema names stay internal.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list tenants", "err", err)
		httpx.Internal(w)
		return
	}
	out := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, tenantResponse{Code: t.Code, Name: t.Name, CreatedAt: t.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tenants": out})
}
