// Package parser turns operator chat input into structured values.
package parser

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyWeight   = errors.New("weight is empty")
	ErrInvalidWeight = errors.New("weight must be a number of grams (450) or kilograms (1.2кг)")
	ErrWeightTooHigh = errors.New("weight is above the per-line limit")
)

// MaxGrams bounds a single weighed line.
const MaxGrams = 100_000

// Weight units. Bare numbers are grams.
var weightUnits = map[string]int64{
	"":     1,
	"г":    1,
	"гр":   1,
	"грам": 1,
	"g":    1,
	"gr":   1,
	"кг":   1000,
	"kg":   1000,
}

// ParseGrams parses "450", "450г", "450 гр", "1.2кг", "1,2 kg" into grams.
// Fractional grams are rounded half up.
func ParseGrams(text string) (int, error) {
	tok := strings.ToLower(strings.Join(strings.Fields(text), ""))
	tok = strings.TrimSuffix(tok, ".")
	if tok == "" {
		return 0, ErrEmptyWeight
	}

	// Find boundary between digits and letters
	digitEnd := 0
	for i, r := range tok {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			digitEnd = i + 1
		} else {
			break
		}
	}
	if digitEnd == 0 {
		return 0, ErrInvalidWeight
	}

	numPart := strings.ReplaceAll(tok[:digitEnd], ",", ".")
	unitPart := strings.TrimRight(tok[digitEnd:], ".")

	// "граммов", "грамм" and friends
	if strings.HasPrefix(unitPart, "грам") {
		unitPart = "грам"
	}

	factor, ok := weightUnits[unitPart]
	if !ok {
		return 0, ErrInvalidWeight
	}

	qty, err := decimal.NewFromString(numPart)
	if err != nil {
		return 0, ErrInvalidWeight
	}
	if qty.IsNegative() {
		return 0, ErrInvalidWeight
	}

	grams := qty.Mul(decimal.NewFromInt(factor)).Round(0)
	if grams.GreaterThan(decimal.NewFromInt(MaxGrams)) {
		return 0, ErrWeightTooHigh
	}
	return int(grams.IntPart()), nil
}
