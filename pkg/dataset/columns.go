// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dataset describes the customs declaration dataset: the column
// schema uploads must carry and the summary the backend computes from it.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// RequiredColumns is the customs declaration schema. Every uploaded file
// must carry all of these columns; order does not matter.
var RequiredColumns = []string{
	"GD_NO_Complete", "NTN", "IMPORTER NAME", "HS CODE", "ITEM DESCRIPTION",
	"Declared Unit PRICE", "ORIGIN COUNTRY", "ASSD QTY", "ASSD UNIT",
	"ASSD UNIT PRICE", "ASSD CURR", "ASSESSED IMPORT VALUE RS",
	"Customs Duty PAID", "Sales Tax PAID", "Income Tax PAID",
	"Additional Custom Duty PAID", "ADD SALES TAX PAID", "REG.DUTY PAID",
	"GST PAID", "Total", "SRO",
}

// MissingColumnsError reports required columns absent from an upload.
type MissingColumnsError struct {
	// Missing lists the absent column names in schema order.
	Missing []string
}

// Error returns a formatted error message.
func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("dataset is missing %d required column(s): %s",
		len(e.Missing), strings.Join(e.Missing, ", "))
}

// ValidateHeader checks a header row against RequiredColumns.
//
// Comparison trims surrounding whitespace but is otherwise exact, since
// the backend matches column names literally.
func ValidateHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[strings.TrimSpace(col)] = true
	}

	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing}
	}
	return nil
}

// ValidateFile reads the header row of a local CSV file and checks it
// against RequiredColumns. Non-CSV files are skipped: the backend
// validates spreadsheet formats itself after parsing.
func ValidateFile(path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".csv") {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return fmt.Errorf("read dataset header: %w", err)
	}
	return ValidateHeader(header)
}
