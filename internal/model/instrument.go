package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StrikeScale is the fixed-point multiplier applied to strikes on the wire.
const StrikeScale = 1000

// SecurityClass identifies the kind of instrument.
type SecurityClass string

const (
	Equity      SecurityClass = "EQUITY"
	Index       SecurityClass = "INDEX"
	Option      SecurityClass = "OPTION"
	IndexOption SecurityClass = "INDEX_OPTION"
)

// IsOption reports whether the class carries strike, expiry and right.
func (c SecurityClass) IsOption() bool {
	return c == Option || c == IndexOption
}

// ParseSecurityClass accepts the config and flag spellings of a class.
func ParseSecurityClass(s string) (SecurityClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "option":
		return Option, nil
	case "stock", "equity":
		return Equity, nil
	case "index":
		return Index, nil
	case "index_option":
		return IndexOption, nil
	}
	return "", fmt.Errorf("invalid security class %q", s)
}

// Right is the option right. NoRight is used for non-options.
type Right string

const (
	NoRight Right = ""
	Call    Right = "C"
	Put     Right = "P"
)

// ParseRight accepts "C"/"P" as well as "call"/"put" in any case.
func ParseRight(s string) (Right, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL":
		return Call, nil
	case "P", "PUT":
		return Put, nil
	}
	return NoRight, fmt.Errorf("invalid option right %q", s)
}

// ErrInvalidInstrument is returned when key fields are inconsistent with the class.
var ErrInvalidInstrument = errors.New("invalid instrument")

// InstrumentKey is the normalized identity of a tradeable instrument.
//
// Strikes are stored in wire scale (thousandths) so that two keys compare
// equal with == exactly when every field matches after normalization.
type InstrumentKey struct {
	Root        string
	Class       SecurityClass
	Market      string
	Right       Right
	StrikeMilli int64
	Expiry      Date
}

// NewSecurity builds a key for an equity or index.
func NewSecurity(root string, class SecurityClass, market string) (InstrumentKey, error) {
	if class.IsOption() {
		return InstrumentKey{}, fmt.Errorf("%w: %s requires strike and expiry", ErrInvalidInstrument, class)
	}
	return newKey(root, class, market)
}

// NewOption builds a key for an option contract. The strike is truncated to
// three decimal places.
func NewOption(root string, class SecurityClass, market string, right Right, strike decimal.Decimal, expiry Date) (InstrumentKey, error) {
	if !class.IsOption() {
		return InstrumentKey{}, fmt.Errorf("%w: %s cannot carry strike and expiry", ErrInvalidInstrument, class)
	}
	if right != Call && right != Put {
		return InstrumentKey{}, fmt.Errorf("%w: right %q", ErrInvalidInstrument, right)
	}
	if expiry.IsZero() {
		return InstrumentKey{}, fmt.Errorf("%w: missing expiry", ErrInvalidInstrument)
	}
	if !strike.IsPositive() {
		return InstrumentKey{}, fmt.Errorf("%w: strike %s", ErrInvalidInstrument, strike)
	}
	k, err := newKey(root, class, market)
	if err != nil {
		return InstrumentKey{}, err
	}
	k.Right = right
	k.StrikeMilli = StrikeToWire(strike)
	k.Expiry = expiry
	return k, nil
}

func newKey(root string, class SecurityClass, market string) (InstrumentKey, error) {
	root = strings.ToUpper(strings.TrimSpace(root))
	if root == "" || strings.Contains(root, ",") {
		return InstrumentKey{}, fmt.Errorf("%w: root %q", ErrInvalidInstrument, root)
	}
	switch class {
	case Equity, Index, Option, IndexOption:
	default:
		return InstrumentKey{}, fmt.Errorf("%w: class %q", ErrInvalidInstrument, class)
	}
	return InstrumentKey{Root: root, Class: class, Market: strings.ToLower(market)}, nil
}

// Strike returns the strike in domain units.
func (k InstrumentKey) Strike() decimal.Decimal {
	return StrikeFromWire(k.StrikeMilli)
}

// IsOption reports whether k identifies an option contract.
func (k InstrumentKey) IsOption() bool {
	return k.Class.IsOption()
}

// Underlying returns the non-option key for an option's root. Index options
// map to the index, equity options to the equity.
func (k InstrumentKey) Underlying() InstrumentKey {
	class := k.Class
	switch k.Class {
	case Option:
		class = Equity
	case IndexOption:
		class = Index
	}
	return InstrumentKey{Root: k.Root, Class: class, Market: k.Market}
}

func (k InstrumentKey) String() string {
	if !k.IsOption() {
		return k.Root
	}
	return fmt.Sprintf("%s %s %s%s", k.Root, k.Expiry, k.Strike().StringFixed(3), k.Right)
}

// StrikeToWire scales a strike by 1000, truncating any further digits.
func StrikeToWire(strike decimal.Decimal) int64 {
	return strike.Shift(3).Truncate(0).IntPart()
}

// StrikeFromWire converts a wire strike back to domain units.
func StrikeFromWire(milli int64) decimal.Decimal {
	return decimal.New(milli, -3)
}
