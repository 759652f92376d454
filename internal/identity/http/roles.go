package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/authlane/identity/internal/identity/service"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/httpx"
	"github.com/authlane/identity/pkg/slogx"
)

// RolesHandler handles the role directory endpoints. All of them sit behind
// the ADMIN role.
type RolesHandler struct {
	RoleService *service.RoleService
}

// CreateRoleRequest names a new role.
type CreateRoleRequest struct {
	Name string `json:"name" example:"AUDITOR"`
}

// RoleResponse is one role row.
type RoleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HandleList handles GET /api/identity/role
//
//	@Summary		List roles
//	@Tags			Roles
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		RoleResponse
//	@Failure		401	{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Failure		403	{object}	httpx.ErrorResponse	"Caller lacks the ADMIN role"
//	@Router			/api/identity/role [get].
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roles, err := h.RoleService.List(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("role list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "roles could not be listed")
		return
	}

	out := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, RoleResponse{ID: role.ID, Name: role.Name})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/identity/role
//
//	@Summary		Create a role
//	@Tags			Roles
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateRoleRequest	true	"Role name"
//	@Success		201		{object}	RoleResponse
//	@Failure		400		{object}	httpx.ErrorResponse	"Missing role name"
//	@Failure		409		{object}	httpx.ErrorResponse	"Role already exists"
//	@Router			/api/identity/role [post].
func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	role, err := h.RoleService.Create(ctx, req.Name)
	switch {
	case errors.Is(err, service.ErrInvalidRole):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_role", err.Error())
		return
	case errors.Is(err, store.ErrAlreadyExists):
		httpx.WriteError(w, http.StatusConflict, "already_exists", "role already exists")
		return
	case err != nil:
		slogx.FromContext(ctx).Error("role create failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "role could not be created")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, RoleResponse{ID: role.ID, Name: role.Name})
}

// HandleDelete handles DELETE /api/identity/role/{name}
//
//	@Summary		Delete a role
//	@Tags			Roles
//	@Security		BearerAuth
//	@Param			name	path	string	true	"Role name"
//	@Success		204		"Role deleted"
//	@Failure		404		{object}	httpx.ErrorResponse	"Unknown role"
//	@Router			/api/identity/role/{name} [delete].
func (h *RolesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.RoleService.Delete(ctx, r.PathValue("name"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "unknown role")
		return
	}
	if err != nil {
		slogx.FromContext(ctx).Error("role delete failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "role could not be deleted")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
