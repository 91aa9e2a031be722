// Package textutil holds small text helpers shared by every scraper.
package textutil

import "strings"

// Normalize collapses all runs of whitespace (including newlines, tabs, and
// control noise) into single spaces and trims the ends.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}
