package store

import "errors"

// Sentinel errors returned by Store implementations. DependencyFailure
// handling (spec §7) treats any other error the same way: log and deny.
var (
	ErrAccountNotFound           = errors.New("account not found")
	ErrOrderNotFound             = errors.New("order not found")
	ErrRiskSettingsNotFound      = errors.New("risk settings not found")
	ErrMarginRequirementNotFound = errors.New("margin requirement not found")
	ErrNotionalLimitNotFound     = errors.New("notional limit not found")
	ErrTradingPermissionNotFound = errors.New("trading permission not found")
	ErrInstrumentNotFound        = errors.New("instrument not found")
)
