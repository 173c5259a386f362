// Package format converts prices and percentages between their decimal
// values and the display strings used by reports and the API ("$1,234.56",
// "1.23%", "N/A").
package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrNotAvailable is returned when parsing the N/A placeholder or a
// null value
var ErrNotAvailable = errors.New("value not available")

const notAvailable = "N/A"

var printer = message.NewPrinter(language.English)

// FormatPrice renders a price with a dollar sign, two decimals and
// thousands separators
func FormatPrice(d decimal.Decimal) string {
	return "$" + printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// FormatNullPrice renders a price or the N/A placeholder
func FormatNullPrice(d decimal.NullDecimal) string {
	if !d.Valid {
		return notAvailable
	}
	return FormatPrice(d.Decimal)
}

// FormatPercent renders a percentage with two decimals and a percent sign
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// FormatNullPercent renders a percentage or the N/A placeholder
func FormatNullPercent(d decimal.NullDecimal) string {
	if !d.Valid {
		return notAvailable
	}
	return FormatPercent(d.Decimal)
}

// ParsePrice converts a price to a decimal. Strings may carry a dollar
// sign and thousands separators; numeric inputs are accepted as-is.
func ParsePrice(v interface{}) (decimal.Decimal, error) {
	return parse(v, "$")
}

// ParsePercent converts a percentage to a decimal. Strings may carry a
// percent sign and thousands separators; numeric inputs are accepted as-is.
func ParsePercent(v interface{}) (decimal.Decimal, error) {
	return parse(v, "%")
}

func parse(v interface{}, symbol string) (decimal.Decimal, error) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case decimal.NullDecimal:
		if !val.Valid {
			return decimal.Zero, ErrNotAvailable
		}
		return val.Decimal, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case string:
		return parseString(val, symbol)
	case nil:
		return decimal.Zero, ErrNotAvailable
	default:
		return decimal.Zero, fmt.Errorf("unsupported value type %T", v)
	}
}

func parseString(s, symbol string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" || strings.EqualFold(cleaned, notAvailable) {
		return decimal.Zero, ErrNotAvailable
	}
	cleaned = strings.ReplaceAll(cleaned, symbol, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return d, nil
}
