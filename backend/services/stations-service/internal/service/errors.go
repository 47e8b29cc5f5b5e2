package service

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by check-in and release. Validation errors are
// detected before any write; ErrStoreUnavailable wraps repository failures.
var (
	ErrUnauthenticated           = errors.New("reporter identity required")
	ErrTooFar                    = errors.New("reporter too far from station")
	ErrInvalidStatus             = errors.New("unknown status value")
	ErrInvalidConnectorSelection = errors.New("invalid connector selection")
	ErrConnectorNotFound         = errors.New("connector not found")
	ErrStoreUnavailable          = errors.New("station store unavailable")
)

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
