package lending

import "errors"

var (
	ErrInvalidAmount         = errors.New("lending: amount must be positive")
	ErrAssetNotConfigured    = errors.New("lending: asset not configured")
	ErrAlreadyConfigured     = errors.New("lending: asset already configured")
	ErrMissingCustody        = errors.New("lending: token and vault are required")
	ErrInsufficientBalance   = errors.New("lending: insufficient balance")
	ErrInsufficientDebt      = errors.New("lending: insufficient debt")
	ErrRateModelNotSet       = errors.New("lending: interest rate model not set")
	ErrFlashBorrowInProgress = errors.New("lending: flash borrow already in progress")
	ErrAmountNotReturned     = errors.New("lending: flash borrow amount not returned")
	ErrHealthFactorTooLow    = errors.New("lending: health factor below minimum")
	ErrNotLiquidatable       = errors.New("lending: borrower not eligible for liquidation")
	ErrLiquidationTooLarge   = errors.New("lending: repayment would overshoot the target health factor")
	ErrNotAuthorized         = errors.New("lending: caller not authorized")
)
