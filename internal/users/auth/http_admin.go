// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/facultyeval/internal/platform/middleware"
	requestutil "github.com/taibuivan/facultyeval/internal/platform/request"
	"github.com/taibuivan/facultyeval/internal/platform/respond"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/pkg/pagination"
	"github.com/taibuivan/facultyeval/pkg/query"
)

// AdminHandler implements the admin-only review and maintenance endpoints.
type AdminHandler struct {
	authService *Service
}

// NewAdminHandler constructs a new [AdminHandler].
func NewAdminHandler(service *Service) *AdminHandler {
	return &AdminHandler{authService: service}
}

// Routes returns a [chi.Router] restricted to admins.
//
// # Endpoints
//   - GET  /faculty                 : Paginated review queue (?status=pending,rejected).
//   - POST /faculty/{id}/approve    : Grants access.
//   - POST /faculty/{id}/reject     : Denies access with a reason.
//   - POST /faculty/{id}/reopen     : Returns a rejected account to pending.
//   - POST /verifications/cleanup   : Deletes stale unverified records.
//   - POST /reconcile               : Normalizes identifiers and heals verification drift.
func (handler *AdminHandler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/faculty", handler.listFaculty)
	router.Post("/faculty/{id}/approve", handler.approve)
	router.Post("/faculty/{id}/reject", handler.reject)
	router.Post("/faculty/{id}/reopen", handler.reopen)
	router.Post("/verifications/cleanup", handler.cleanup)
	router.Post("/reconcile", handler.reconcile)

	return router
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// listFaculty handles GET /api/v1/admin/faculty.
func (handler *AdminHandler) listFaculty(writer http.ResponseWriter, request *http.Request) {
	page := pagination.FromRequest(request)
	statuses := query.StringSlice(request.URL.Query().Get("status"))

	faculty, total, err := handler.authService.ListFaculty(request.Context(), statuses, page)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, faculty, pagination.NewMeta(page.Page, page.Limit, total))
}

// approve handles POST /api/v1/admin/faculty/{id}/approve.
func (handler *AdminHandler) approve(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	faculty, err := handler.authService.ApproveFaculty(request.Context(), claims.UserID, requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, faculty)
}

// reject handles POST /api/v1/admin/faculty/{id}/reject.
func (handler *AdminHandler) reject(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input rejectRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	faculty, err := handler.authService.RejectFaculty(request.Context(), claims.UserID, requestutil.Param(request, "id"), input.Reason)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, faculty)
}

// reopen handles POST /api/v1/admin/faculty/{id}/reopen.
func (handler *AdminHandler) reopen(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	faculty, err := handler.authService.ReopenFaculty(request.Context(), claims.UserID, requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, faculty)
}

// cleanup handles POST /api/v1/admin/verifications/cleanup.
func (handler *AdminHandler) cleanup(writer http.ResponseWriter, request *http.Request) {
	deleted, err := handler.authService.CleanupVerifications(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int64{"deleted": deleted})
}

// reconcile handles POST /api/v1/admin/reconcile.
func (handler *AdminHandler) reconcile(writer http.ResponseWriter, request *http.Request) {
	report, err := handler.authService.Reconcile(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, report)
}
