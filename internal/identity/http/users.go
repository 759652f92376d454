package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/service"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/httpx"
	"github.com/authlane/identity/pkg/slogx"
)

// UsersHandler handles account registration and management.
type UsersHandler struct {
	AccountService *service.AccountService
}

// CreateUserRequest registers a new account. Password may be omitted, in
// which case a generated one is returned exactly once.
type CreateUserRequest struct {
	Username  string   `json:"username" example:"jdoe"`
	Email     string   `json:"email" example:"jdoe@example.com"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Password  string   `json:"password,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// UpdateUserRequest replaces the mutable profile fields.
type UpdateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UserResponse is the public account shape.
type UserResponse struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	FirstName         string     `json:"firstName,omitempty"`
	LastName          string     `json:"lastName,omitempty"`
	Roles             []string   `json:"roles"`
	TwoFactorEnabled  bool       `json:"twoFactorEnabled"`
	Disabled          bool       `json:"disabled"`
	LockoutUntil      *time.Time `json:"lockoutUntil,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	GeneratedPassword string     `json:"generatedPassword,omitempty"`
}

func toUserResponse(a domain.Account) UserResponse {
	return UserResponse{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		Roles:            a.Roles,
		TwoFactorEnabled: a.TwoFactorEnabled(),
		Disabled:         a.Disabled,
		LockoutUntil:     a.LockoutUntil,
		CreatedAt:        a.CreatedAt,
	}
}

// HandleCreate handles POST /api/identity/user
//
//	@Summary		Register a new account
//	@Description	Creates an account. Requested roles must already exist; with no roles the
//	@Description	account gets USER. An omitted password is generated and returned once.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateUserRequest	true	"Account fields"
//	@Success		201		{object}	UserResponse		"Created account"
//	@Failure		400		{object}	httpx.ErrorResponse	"Validation failure or unknown role"
//	@Failure		409		{object}	httpx.ErrorResponse	"Username or email already taken"
//	@Failure		500		{object}	httpx.ErrorResponse	"Internal server error"
//	@Router			/api/identity/user [post].
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	acct, generated, err := h.AccountService.Create(ctx, service.CreateAccountRequest{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Roles:     req.Roles,
	})
	switch {
	case errors.Is(err, service.ErrInvalidAccount), errors.Is(err, service.ErrUnknownRole):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_account", err.Error())
		return
	case errors.Is(err, store.ErrAlreadyExists):
		httpx.WriteError(w, http.StatusConflict, "already_exists", "username or email already taken")
		return
	case err != nil:
		log.Error("account create failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "account could not be created")
		return
	}

	resp := toUserResponse(acct)
	resp.GeneratedPassword = generated
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// HandleGet handles GET /api/identity/user/{username}
//
//	@Summary		Fetch an account
//	@Description	Returns the account for the given username. The literal "me" resolves to
//	@Description	the authenticated caller. Reading other accounts requires the ADMIN role.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			username	path		string	true	"Username or 'me'"
//	@Success		200			{object}	UserResponse
//	@Failure		401			{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Failure		403			{object}	httpx.ErrorResponse	"Not the caller's own account"
//	@Failure		404			{object}	httpx.ErrorResponse	"Unknown account"
//	@Router			/api/identity/user/{username} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	acct, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	if !h.callerMayManage(ctx, acct) {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "cannot read another account")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(acct))
}

// HandleUpdate handles PUT /api/identity/user/{username}
//
//	@Summary		Update an account profile
//	@Description	Replaces email and name fields. "me" resolves to the caller; updating other
//	@Description	accounts requires the ADMIN role.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			username	path		string				true	"Username or 'me'"
//	@Param			request		body		UpdateUserRequest	true	"Profile fields"
//	@Success		200			{object}	UserResponse
//	@Failure		400			{object}	httpx.ErrorResponse	"Validation failure"
//	@Failure		401			{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Failure		403			{object}	httpx.ErrorResponse	"Not the caller's own account"
//	@Failure		404			{object}	httpx.ErrorResponse	"Unknown account"
//	@Router			/api/identity/user/{username} [put].
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	acct, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}
	if !h.callerMayManage(ctx, acct) {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "cannot update another account")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	updated, err := h.AccountService.UpdateProfile(ctx, acct.ID, service.UpdateProfileRequest{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	switch {
	case errors.Is(err, service.ErrInvalidAccount):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_account", err.Error())
		return
	case err != nil:
		log.Error("profile update failed", "err", err, "account_id", acct.ID)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "account could not be updated")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

// HandleChangePassword handles POST /api/identity/user/password
//
//	@Summary		Change the caller's password
//	@Description	Verifies the current password and replaces the stored credential. The whole
//	@Description	credential, both salts included, is regenerated.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	ChangePasswordRequest	true	"Current and new password"
//	@Success		204		"Password changed"
//	@Failure		400		{object}	httpx.ErrorResponse	"Malformed request body"
//	@Failure		401		{object}	httpx.ErrorResponse	"Current password incorrect"
//	@Failure		500		{object}	httpx.ErrorResponse	"Internal server error"
//	@Router			/api/identity/user/password [post].
func (h *UsersHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing subject")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	err := h.AccountService.ChangePassword(ctx, subject, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, service.ErrWrongPassword):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "current password is incorrect")
		return
	case err != nil:
		log.Error("password change failed", "err", err, "account_id", subject)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "password could not be changed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /api/identity/user/{username}
//
//	@Summary		Delete an account
//	@Description	Removes an account and its credential. ADMIN only.
//	@Tags			Users
//	@Security		BearerAuth
//	@Param			username	path	string	true	"Username"
//	@Success		204			"Account deleted"
//	@Failure		401			{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Failure		403			{object}	httpx.ErrorResponse	"Caller lacks the ADMIN role"
//	@Failure		404			{object}	httpx.ErrorResponse	"Unknown account"
//	@Router			/api/identity/user/{username} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	acct, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	if err := h.AccountService.Delete(ctx, acct.ID); err != nil {
		log.Error("account delete failed", "err", err, "account_id", acct.ID)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "account could not be deleted")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolveTarget maps the {username} path value onto an account, treating the
// literal "me" as the authenticated caller. On failure the response is
// already written.
func (h *UsersHandler) resolveTarget(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	ctx := r.Context()

	username := r.PathValue("username")
	if username == "me" {
		subject := httpx.SubjectFromContext(ctx)
		if subject == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing subject")
			return domain.Account{}, false
		}
		acct, err := h.AccountService.GetByID(ctx, subject)
		if err != nil {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "unknown account")
			return domain.Account{}, false
		}
		return acct, true
	}

	acct, err := h.AccountService.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "unknown account")
		return domain.Account{}, false
	}
	if err != nil {
		slogx.FromContext(ctx).Error("account lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "account could not be loaded")
		return domain.Account{}, false
	}
	return acct, true
}

// callerMayManage allows self-service on the caller's own account and
// anything for admins.
func (h *UsersHandler) callerMayManage(ctx context.Context, acct domain.Account) bool {
	if httpx.SubjectFromContext(ctx) == acct.ID {
		return true
	}
	claims, ok := httpx.ClaimsFromContext(ctx)
	return ok && claims.HasRole(domain.RoleAdmin)
}
