package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/authlane/identity/internal/identity/service"
	"github.com/authlane/identity/pkg/httpx"
	"github.com/authlane/identity/pkg/slogx"
)

// MFAHandler handles TOTP enrollment lifecycle for authenticated accounts.
type MFAHandler struct {
	MFAService *service.MFAService
}

// TOTPEnrollResponse is the provisioning material shown once at enrollment.
type TOTPEnrollResponse struct {
	Secret  string `json:"secret"`
	URL     string `json:"url"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// TOTPActivateRequest carries the first code proving the authenticator works.
type TOTPActivateRequest struct {
	Code string `json:"code" example:"123456"`
}

// HandleEnroll handles POST /api/auth/mfa/enroll
//
//	@Summary		Start TOTP enrollment
//	@Description	Generates a TOTP secret for the caller and returns the provisioning URL.
//	@Description	The account stays single-factor until a code is activated.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	TOTPEnrollResponse
//	@Failure		400	{object}	httpx.ErrorResponse	"Two-factor already enabled"
//	@Failure		401	{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Failure		500	{object}	httpx.ErrorResponse	"Internal server error"
//	@Router			/api/auth/mfa/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing subject")
		return
	}

	enrollment, err := h.MFAService.EnrollTOTP(ctx, subject)
	if errors.Is(err, service.ErrMFAAlreadyEnabled) {
		httpx.WriteError(w, http.StatusBadRequest, "mfa_already_enabled", "two-factor is already enabled")
		return
	}
	if err != nil {
		log.Error("totp enrollment failed", "err", err, "account_id", subject)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "enrollment could not be started")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TOTPEnrollResponse{
		Secret:  enrollment.Secret,
		URL:     enrollment.URL,
		Issuer:  enrollment.Issuer,
		Account: enrollment.Account,
	})
}

// HandleActivate handles POST /api/auth/mfa/activate
//
//	@Summary		Activate TOTP
//	@Description	Verifies a first TOTP code against the pending enrollment and flips the
//	@Description	account to two-factor.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	TOTPActivateRequest	true	"TOTP code"
//	@Success		204		"Two-factor enabled"
//	@Failure		400		{object}	httpx.ErrorResponse	"No enrollment, already enabled, or bad code"
//	@Failure		401		{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Failure		500		{object}	httpx.ErrorResponse	"Internal server error"
//	@Router			/api/auth/mfa/activate [post].
func (h *MFAHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing subject")
		return
	}

	var req TOTPActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	err := h.MFAService.ActivateTOTP(ctx, subject, req.Code)
	switch {
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		httpx.WriteError(w, http.StatusBadRequest, "mfa_already_enabled", "two-factor is already enabled")
		return
	case errors.Is(err, service.ErrMFANotEnrolled):
		httpx.WriteError(w, http.StatusBadRequest, "mfa_not_enrolled", "start enrollment first")
		return
	case errors.Is(err, service.ErrInvalidTOTPCode):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "code did not verify")
		return
	case err != nil:
		log.Error("totp activation failed", "err", err, "account_id", subject)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "activation failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove handles DELETE /api/auth/mfa
//
//	@Summary		Disable TOTP
//	@Description	Turns the caller's second factor off and wipes the stored secret.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Success		204	"Two-factor disabled"
//	@Failure		401	{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Failure		500	{object}	httpx.ErrorResponse	"Internal server error"
//	@Router			/api/auth/mfa [delete].
func (h *MFAHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing subject")
		return
	}

	if err := h.MFAService.DisableTOTP(ctx, subject); err != nil {
		log.Error("totp disable failed", "err", err, "account_id", subject)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "two-factor could not be disabled")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
