package integrity

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrityViolation marks data that breaks a ledger invariant. It is fatal to the
	// network being computed and is never coerced away.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrDecimalMismatch is raised when a network's reserve and liability ledgers disagree
	// on the decimal count of an asset that both hold.
	ErrDecimalMismatch = fmt.Errorf("%w: decimal mismatch", ErrIntegrityViolation)
)
