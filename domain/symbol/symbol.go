// Package symbol defines the closed roster of tradable instruments.
//
// A Symbol is a one-byte discriminant, so it can index fixed arrays
// directly. Adding an instrument means extending the roster below and
// redeploying; there is no runtime registration.
package symbol

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownSymbol is returned for any instrument outside the roster or
// not configured on a manager.
var ErrUnknownSymbol = errors.New("unknown symbol")

type Symbol uint8

const (
	AAPL Symbol = iota
	MSFT
	GOOGL
	AMZN
	TSLA
	META
	NVDA
	AMD
	INTC
	NFLX

	// Count is the size of the roster. Not a valid Symbol.
	Count
)

var names = [Count]string{
	AAPL:  "AAPL",
	MSFT:  "MSFT",
	GOOGL: "GOOGL",
	AMZN:  "AMZN",
	TSLA:  "TSLA",
	META:  "META",
	NVDA:  "NVDA",
	AMD:   "AMD",
	INTC:  "INTC",
	NFLX:  "NFLX",
}

// Valid reports whether s is a member of the roster.
func (s Symbol) Valid() bool {
	return s < Count
}

func (s Symbol) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return names[s]
}

// Parse resolves an instrument code, case-insensitively.
func Parse(code string) (Symbol, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, n := range names {
		if n == code {
			return Symbol(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownSymbol, "%q", code)
}

// All returns the full roster in discriminant order.
func All() []Symbol {
	out := make([]Symbol, Count)
	for i := range out {
		out[i] = Symbol(i)
	}
	return out
}

// MarshalText lets symbols appear as codes in YAML and JSON.
func (s Symbol) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Wrapf(ErrUnknownSymbol, "discriminant %d", uint8(s))
	}
	return []byte(names[s]), nil
}

func (s *Symbol) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
