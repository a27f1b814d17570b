// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"strconv"
	"strings"
)

// Summary is the backend's aggregate view of an uploaded dataset.
//
// Field names mirror the upload response JSON exactly; note the mixed
// casing of uniqueHSCodes.
type Summary struct {
	TotalRows       int      `json:"totalRows"`
	UniqueImporters int      `json:"uniqueImporters"`
	UniqueHSCodes   int      `json:"uniqueHSCodes"`
	UniqueCountries int      `json:"uniqueCountries"`
	TotalValue      float64  `json:"totalValue"`
	TotalDutyPaid   float64  `json:"totalDutyPaid"`
	TotalTaxPaid    float64  `json:"totalTaxPaid"`
	Columns         []string `json:"columns,omitempty"`
}

// FormatCount renders an integer with thousands separators ("1,234,567").
func FormatCount(n int) string {
	return groupThousands(strconv.Itoa(n))
}

// FormatMoney renders a rupee amount with thousands separators and at
// most two decimal places, trimming trailing zeros ("12,345.5").
func FormatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
		fracPart = strings.TrimRight(fracPart, "0")
	}

	out := groupThousands(intPart)
	if fracPart != "" {
		out += "." + fracPart
	}
	return out
}

// groupThousands inserts commas into a decimal integer string. A leading
// minus sign is preserved.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	n := len(s)
	if n <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
