// Fuelrecon - Fuel invoice reconciliation for fleet operators.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Command fuelctl runs extraction and matching against local files, without
// the HTTP server.
//
// Usage:
//
//	fuelctl detect invoice.xml
//	fuelctl extract --template template.json invoice.xml
//	fuelctl match --template template.json --db fuelrecon.db --xlsx review.xlsx invoice.xml
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
