package panel

import "errors"

var (
	// ErrLastInstance is returned when removing the only instance left.
	ErrLastInstance = errors.New("cannot remove the last instance")
	// ErrSelectedInstance is returned when removing the selected instance.
	ErrSelectedInstance = errors.New("cannot remove the selected instance")
	// ErrUnknownInstance is returned for a pk the instance list does not hold.
	ErrUnknownInstance = errors.New("unknown instance")
	// ErrSettingsLocked is returned when changing settings of an active instance.
	ErrSettingsLocked = errors.New("settings are locked while the instance is active")
	// ErrUnknownOption is returned when a chosen configuration or window is not offered.
	ErrUnknownOption = errors.New("option is not available")
)
