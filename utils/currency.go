package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPeso formats an amount as Philippine peso, e.g. 1234.5 -> "₱1,234.50".
func FormatPeso(amount decimal.Decimal) string {
	return withSign(amount, "₱")
}

// FormatPesoASCII is FormatPeso for outputs limited to Latin-1, like PDF core fonts.
func FormatPesoASCII(amount decimal.Decimal) string {
	return withSign(amount, "PHP ")
}

func withSign(amount decimal.Decimal, symbol string) string {
	negative := amount.IsNegative()
	formatted := amount.Abs().StringFixed(2)

	parts := strings.SplitN(formatted, ".", 2)
	integerPart := parts[0]

	// Tambahkan pemisah ribuan
	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	out := symbol + strings.Join(groups, ",") + "." + parts[1]
	if negative {
		return "-" + out
	}
	return out
}
