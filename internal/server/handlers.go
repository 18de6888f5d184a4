package server

import (
	"context"
	"net/http"
	"time"

	"storefront/categorizer/internal/assignment"
	"storefront/categorizer/internal/domain"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

type Sessions interface {
	Open(ctx context.Context, tenantID, itemID string) (*assignment.Controller, error)
	Get(ctx context.Context, id string) (*assignment.Controller, error)
	Persist(ctx context.Context, ctrl *assignment.Controller) error
	Close(ctx context.Context, id string) error
}

type Handlers struct {
	Sessions    Sessions
	WaitTimeout time.Duration
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type browseRequest struct {
	Path []string `json:"path"`
}

type selectRequest struct {
	Node domain.TaxonomyNode `json:"node"`
}

type createRequest struct {
	Name string `json:"name"`
}

type selectResponse struct {
	Resolution assignment.ResolutionKind `json:"resolution"`
	Session    assignment.View           `json:"session"`
}

type createResponse struct {
	Category domain.TenantCategory `json:"category"`
	Session  assignment.View       `json:"session"`
}

type assignResponse struct {
	SessionID  string `json:"sessionId"`
	ItemID     string `json:"itemId"`
	CategoryID string `json:"categoryId"`
}

// OpenSession handles POST /api/v1/tenants/{tenantID}/items/{itemID}/category-sessions
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.Sessions.Open(r.Context(), chi.URLParam(r, "tenantID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ctrl.View())
}

// GetSession handles GET /api/v1/category-sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

// SetMode handles PUT /api/v1/category-sessions/{id}/mode
func (h *Handlers) SetMode(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[modeRequest](w, r)
	if !ok {
		return
	}

	done, err := ctrl.SetMode(domain.Mode(req.Mode))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.settle(r, done)
	h.respond(w, r, ctrl)
}

// Search handles POST /api/v1/category-sessions/{id}/search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[searchRequest](w, r)
	if !ok {
		return
	}

	done, err := ctrl.Search(req.Query)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.settle(r, done)
	h.respond(w, r, ctrl)
}

// Browse handles POST /api/v1/category-sessions/{id}/browse
func (h *Handlers) Browse(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[browseRequest](w, r)
	if !ok {
		return
	}

	done, err := ctrl.NavigateBrowse(req.Path)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.settle(r, done)
	h.respond(w, r, ctrl)
}

// Select handles POST /api/v1/category-sessions/{id}/select
func (h *Handlers) Select(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[selectRequest](w, r)
	if !ok {
		return
	}

	resolution, err := ctrl.SelectTaxonomyNode(r.Context(), req.Node)
	h.persist(r, ctrl)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectResponse{Resolution: resolution.Kind(), Session: ctrl.View()})
}

// ChooseCandidate handles POST /api/v1/category-sessions/{id}/candidates/{categoryID}
func (h *Handlers) ChooseCandidate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := ctrl.ChooseCandidate(chi.URLParam(r, "categoryID")); err != nil {
		writeDomainError(w, err)
		return
	}
	h.respond(w, r, ctrl)
}

// CreateCategory handles POST /api/v1/category-sessions/{id}/create
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[createRequest](w, r)
	if !ok {
		return
	}

	created, err := ctrl.ConfirmCreateNewCategory(r.Context(), req.Name)
	h.persist(r, ctrl)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{Category: created, Session: ctrl.View()})
}

// Assign handles POST /api/v1/category-sessions/{id}/assign
func (h *Handlers) Assign(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	categoryID, err := ctrl.Assign(r.Context())
	h.persist(r, ctrl)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := ctrl.View()
	writeJSON(w, http.StatusOK, assignResponse{SessionID: view.SessionID, ItemID: view.ItemID, CategoryID: categoryID})
}

// CloseSession handles DELETE /api/v1/category-sessions/{id}
func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*assignment.Controller, bool) {
	ctrl, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return ctrl, true
}

// settle waits for a triggered lookup, bounded by the wait timeout. A lookup still running
// afterwards shows up as in flight in the returned view.
func (h *Handlers) settle(r *http.Request, done <-chan struct{}) {
	timer := time.NewTimer(h.WaitTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-r.Context().Done():
	}
}

func (h *Handlers) persist(r *http.Request, ctrl *assignment.Controller) {
	if err := h.Sessions.Persist(r.Context(), ctrl); err != nil {
		log.Warnf("⚠️ Failed to persist session %s: %v", ctrl.SessionID(), err)
	}
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, ctrl *assignment.Controller) {
	h.persist(r, ctrl)
	writeJSON(w, http.StatusOK, ctrl.View())
}
