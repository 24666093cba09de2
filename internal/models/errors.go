package models

import (
	"errors"
	"fmt"
)

var (
	ErrFacilityNotFound    = errors.New("facility not found")
	ErrFacilityUnavailable = errors.New("facility is not available for reservation")
	ErrMemberNotFound      = errors.New("member not found")
	ErrPhoneRequired       = errors.New("phone number required")
	ErrDailyLimitReached   = errors.New("facility already used today")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidStatus       = errors.New("invalid facility status")
	ErrConflict            = errors.New("conflict")
	ErrTokenExpired        = errors.New("token is invalid or expired")
	ErrBoardNotFound       = errors.New("board not found")
	ErrInvalidGroupSize    = errors.New("invalid group size")
	ErrDuplicateMember     = errors.New("member listed more than once")
	ErrInvalidImage        = errors.New("invalid image")
)

// ErrPhoneConflict and ErrMemberIDConflict are both ErrConflict
var (
	ErrPhoneConflict    = fmt.Errorf("%w: phone number already in use", ErrConflict)
	ErrMemberIDConflict = fmt.Errorf("%w: member id already in use", ErrConflict)
)
