package domain

// SignInStatus is the terminal outcome of one sign-in attempt. These are
// expected, frequent results returned as values, never as errors.
type SignInStatus int

const (
	SignInFailed SignInStatus = iota
	SignInSuccess
	SignInLockedOut
	SignInRequiresTwoFactor
	SignInNotAllowed
)

func (s SignInStatus) String() string {
	switch s {
	case SignInSuccess:
		return "success"
	case SignInLockedOut:
		return "locked_out"
	case SignInRequiresTwoFactor:
		return "requires_two_factor"
	case SignInNotAllowed:
		return "not_allowed"
	default:
		return "failed"
	}
}

// SignInResult is produced fresh per attempt and never persisted. Account is
// populated only on Success and RequiresTwoFactor; MFAToken only on
// RequiresTwoFactor.
type SignInResult struct {
	Status   SignInStatus
	Account  Account
	MFAToken string
}
