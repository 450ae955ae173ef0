// Package display formats sizes and deltas for human-readable output.
package display

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatBytes returns a human-readable IEC size (B, KiB, MiB, ...).
// Negative sizes keep their sign.
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatBytesWithSign prefixes with + or - for delta display (e.g. "- 1.2 KiB").
func FormatBytesWithSign(bytes int64) string {
	sign := ""
	if bytes > 0 {
		sign = "+ "
	} else if bytes < 0 {
		sign = "- "
		bytes = -bytes
	}
	return sign + FormatBytes(bytes)
}

// FormatPercent renders an already-truncated percentage with two decimals
// and an explicit sign for non-zero values (e.g. "-12.34%").
func FormatPercent(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	if pct == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", pct)
}
