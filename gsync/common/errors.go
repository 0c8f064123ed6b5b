package common

import (
	"errors"
	"fmt"
)

// RetcodeTimedOut is the retcode remote gacha APIs answer with once the
// signed auth query of a url has expired.
const RetcodeTimedOut = -101

// Common error types used across gacha packages
var (
	ErrIllegalGachaURL    = errors.New("illegal gacha url")
	ErrTimedOutGachaURL   = errors.New("gacha url has timed out")
	ErrVacantGachaURL     = errors.New("no gacha url matches the account")
	ErrFetcherChannelSend = errors.New("failed to send on the gacha record fetcher channel")
	ErrFetcherChannelJoin = errors.New("failed to join the gacha record fetcher task")
	ErrUnsupportedFacet   = errors.New("unsupported account facet")
)

// RetcodeError is returned when a gacha API answers with a non-zero retcode
// other than RetcodeTimedOut.
type RetcodeError struct {
	Retcode int
	Message string
}

func (e *RetcodeError) Error() string {
	return fmt.Sprintf("gacha record retcode %d: %s", e.Retcode, e.Message)
}

// CheckRetcode maps an API envelope retcode to the error taxonomy.
func CheckRetcode(retcode int, message string) error {
	switch retcode {
	case 0:
		return nil
	case RetcodeTimedOut:
		return fmt.Errorf("%w: %s", ErrTimedOutGachaURL, message)
	default:
		return &RetcodeError{Retcode: retcode, Message: message}
	}
}

// IsTimedOut reports whether err means the url itself needs re-validation.
func IsTimedOut(err error) bool {
	return errors.Is(err, ErrTimedOutGachaURL)
}

// AsRetcode extracts a RetcodeError from the chain, if any.
func AsRetcode(err error) (*RetcodeError, bool) {
	var retcodeErr *RetcodeError
	if errors.As(err, &retcodeErr) {
		return retcodeErr, true
	}
	return nil, false
}

// IllegalURL wraps ErrIllegalGachaURL with the reason the url was rejected.
func IllegalURL(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalGachaURL, fmt.Sprintf(format, args...))
}
