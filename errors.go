// Copyright (c) 2025 Neomantra Corp

package hydra

import "fmt"

// Configuration errors: bad wiring detected at registration or build time.
var (
	ErrDuplicateID     = fmt.Errorf("duplicate id")
	ErrAlreadyBuilt    = fmt.Errorf("already built")
	ErrMissingCallback = fmt.Errorf("strategy missing required callback")
)

// State errors: a valid operation invoked during the wrong phase.
var (
	ErrNotBuilt      = fmt.Errorf("not built")
	ErrAssetInactive = fmt.Errorf("asset has not reached its first tick")
	ErrWrongPhase    = fmt.Errorf("operation not allowed in current phase")
)

// Lookup errors: an id that resolves to nothing.
var (
	ErrUnknownAsset     = fmt.Errorf("unknown asset")
	ErrUnknownExchange  = fmt.Errorf("unknown exchange")
	ErrUnknownBroker    = fmt.Errorf("unknown broker")
	ErrUnknownPortfolio = fmt.Errorf("unknown portfolio")
	ErrUnknownColumn    = fmt.Errorf("unknown column")
	ErrUnknownOrder     = fmt.Errorf("unknown order")
)

// Data errors: malformed input data.
var (
	ErrNonMonotonicIndex = fmt.Errorf("datetime index is not strictly increasing")
	ErrShapeMismatch     = fmt.Errorf("row/column shape does not match values length")
	ErrHeaderMismatch    = fmt.Errorf("header count does not match column count")
	ErrHeadersLoaded     = fmt.Errorf("headers already loaded")
	ErrDataLoaded        = fmt.Errorf("data already loaded")
	ErrNoHeaders         = fmt.Errorf("headers not loaded")
	ErrNoData            = fmt.Errorf("asset has no data loaded")
	ErrZeroUnitOrder     = fmt.Errorf("order for zero units")
)

// Out-of-range errors.
var (
	ErrRowOutOfRange = fmt.Errorf("row offset outside loaded history")
)

// ErrInternalInvariant marks an aggregation mismatch between a portfolio and
// its children.  It is never caught inside the engine.
var ErrInternalInvariant = fmt.Errorf("internal invariant violated")

func duplicateIDError(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrDuplicateID, kind, id)
}

func unknownIDError(sentinel error, id string) error {
	return fmt.Errorf("%w: %q", sentinel, id)
}

func unknownColumnError(assetID, column string) error {
	return fmt.Errorf("%w: %q on asset %q", ErrUnknownColumn, column, assetID)
}

func rowOutOfRangeError(row, rows int) error {
	return fmt.Errorf("%w: row %d of %d", ErrRowOutOfRange, row, rows)
}
