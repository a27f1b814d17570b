// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transcript

import (
	"fmt"
	"strings"

	"github.com/HighNCode/Customs-Analyzer/pkg/dataset"
)

// QuickPrompts are suggested starting questions shown after an upload.
var QuickPrompts = []string{
	"Valuation discrepancies",
	"Tax calculations and anomalies",
	"Unusual patterns or suspicious entries",
	"Specific importers or HS codes",
	"Country-wise analysis",
	"Compliance issues",
}

// Welcome composes the post-upload system message from the dataset
// summary. Counts get thousands separators and monetary totals are
// rendered as rupee amounts.
func Welcome(s dataset.Summary) string {
	var b strings.Builder

	b.WriteString("✅ **File uploaded successfully and connected to AI!**\n\n")
	b.WriteString("**Data Summary:**\n")
	fmt.Fprintf(&b, "- Total Records: %s\n", dataset.FormatCount(s.TotalRows))
	fmt.Fprintf(&b, "- Unique Importers: %s\n", dataset.FormatCount(s.UniqueImporters))
	fmt.Fprintf(&b, "- Unique HS Codes: %s\n", dataset.FormatCount(s.UniqueHSCodes))
	fmt.Fprintf(&b, "- Origin Countries: %s\n", dataset.FormatCount(s.UniqueCountries))
	fmt.Fprintf(&b, "- Total Import Value: Rs %s\n", dataset.FormatMoney(s.TotalValue))
	fmt.Fprintf(&b, "- Total Customs Duty: Rs %s\n", dataset.FormatMoney(s.TotalDutyPaid))
	fmt.Fprintf(&b, "- Total Sales Tax: Rs %s\n\n", dataset.FormatMoney(s.TotalTaxPaid))

	b.WriteString("🤖 **AI Analysis Ready!** I'm connected to the analysis engine and ready to dig into this customs data.\n\n")
	b.WriteString("You can ask me about:\n")
	for _, p := range QuickPrompts {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("- And much more!")

	return b.String()
}

// ErrorGuidance is the troubleshooting footer appended to stream
// failures.
const ErrorGuidance = "Please make sure:\n" +
	"1. The backend server is running\n" +
	"2. Your dataset session is still active (re-upload if needed)\n" +
	"3. Then try the question again"

// FailureMessage formats a stream failure for the transcript.
func FailureMessage(err error) string {
	return fmt.Sprintf("❌ **Error:** %v\n\n%s", err, ErrorGuidance)
}
