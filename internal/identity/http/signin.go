package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/service"
	"github.com/authlane/identity/pkg/httpx"
	"github.com/authlane/identity/pkg/slogx"
)

// SignInHandler handles password and second-factor sign-in.
type SignInHandler struct {
	SignInService *service.SignInService
	TokenService  *service.TokenService
}

// SignInRequest is the password sign-in body. Username doubles as the
// identifier field: a value containing '@' is treated as an email.
type SignInRequest struct {
	Username string `json:"username" example:"jdoe"`
	Password string `json:"password" example:"hunter2hunter2"`
}

// TwoFactorRequest completes a pending two-factor sign-in.
type TwoFactorRequest struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code" example:"123456"`
}

// SignInResponse is the issued access token envelope.
type SignInResponse struct {
	JwtToken       string    `json:"jwtToken"`
	UserID         string    `json:"userId"`
	ExpirationDate time.Time `json:"expirationDate"`
}

// TwoFactorChallengeResponse tells the client a second factor is required.
type TwoFactorChallengeResponse struct {
	MFAToken string `json:"mfa_token"`
}

// HandlePassword handles POST /api/auth/signin
//
//	@Summary		Password sign-in
//	@Description	Verifies a username (or email) and password and issues a JWT access token.
//	@Description	Failed attempts count toward the account lockout threshold.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SignInRequest				true	"Credentials"
//	@Success		200		{object}	SignInResponse				"Access token"
//	@Success		409		{object}	TwoFactorChallengeResponse	"Second factor required"
//	@Failure		400		{object}	httpx.ErrorResponse			"Malformed request body"
//	@Failure		401		{object}	httpx.ErrorResponse			"Invalid credentials"
//	@Failure		403		{object}	httpx.ErrorResponse			"Account disabled"
//	@Failure		423		{object}	httpx.ErrorResponse			"Account locked out"
//	@Failure		500		{object}	httpx.ErrorResponse			"Internal server error"
//	@Router			/api/auth/signin [post].
func (h *SignInHandler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := h.SignInService.PasswordSignIn(ctx, service.SignInRequest{
		Identifier:       req.Username,
		Password:         req.Password,
		LockoutOnFailure: true,
	})
	if err != nil {
		log.Error("sign-in failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "sign-in could not be processed")
		return
	}

	h.writeResult(w, r, result)
}

// HandleTwoFactor handles POST /api/auth/signin/mfa
//
//	@Summary		Complete two-factor sign-in
//	@Description	Validates a TOTP code against a pending sign-in challenge and issues the access token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TwoFactorRequest	true	"Challenge token and TOTP code"
//	@Success		200		{object}	SignInResponse		"Access token"
//	@Failure		400		{object}	httpx.ErrorResponse	"Malformed request body"
//	@Failure		401		{object}	httpx.ErrorResponse	"Invalid code or expired challenge"
//	@Failure		403		{object}	httpx.ErrorResponse	"Account disabled"
//	@Failure		429		{object}	httpx.ErrorResponse	"Challenge attempt budget exhausted"
//	@Failure		500		{object}	httpx.ErrorResponse	"Internal server error"
//	@Router			/api/auth/signin/mfa [post].
func (h *SignInHandler) HandleTwoFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req TwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := h.SignInService.CompleteTwoFactor(ctx, req.MFAToken, req.Code)
	if errors.Is(err, service.ErrTooManyMFAAttempts) {
		httpx.WriteError(w, http.StatusTooManyRequests, "too_many_attempts",
			"challenge consumed, sign in again with your password")
		return
	}
	if err != nil {
		log.Error("two-factor sign-in failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "sign-in could not be processed")
		return
	}

	h.writeResult(w, r, result)
}

// writeResult maps a sign-in outcome onto the wire. Failed stays a generic
// 401 so the response never reveals whether the account exists.
func (h *SignInHandler) writeResult(w http.ResponseWriter, r *http.Request, result domain.SignInResult) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	switch result.Status {
	case domain.SignInSuccess:
		issued, err := h.TokenService.IssueToken(ctx, result.Account)
		if err != nil {
			log.Error("token issuance failed", "err", err, "account_id", result.Account.ID)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "token could not be issued")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, SignInResponse{
			JwtToken:       issued.Token,
			UserID:         issued.SubjectID,
			ExpirationDate: issued.ExpiresAt,
		})

	case domain.SignInRequiresTwoFactor:
		httpx.WriteJSON(w, http.StatusConflict, TwoFactorChallengeResponse{
			MFAToken: result.MFAToken,
		})

	case domain.SignInLockedOut:
		httpx.WriteError(w, http.StatusLocked, "locked_out",
			"account is temporarily locked, try again later")

	case domain.SignInNotAllowed:
		httpx.WriteError(w, http.StatusForbidden, "not_allowed",
			"account is not allowed to sign in")

	default:
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
			"username or password is incorrect")
	}
}
