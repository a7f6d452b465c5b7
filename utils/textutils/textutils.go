// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils formats values for command line output.
package textutils

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatInt formats an integer with thousands separators for human readability.
func FormatInt(n int64) string {
	return printer.Sprintf("%d", n)
}
