// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package query parses list filters out of URL query strings.
package query

import (
	"strings"
)

// StringSlice parses a single comma-separated query string
// into a trimmed, lowercased slice of strings. Empty entries are dropped.
//
//	StringSlice("pending, Rejected,,") // []string{"pending", "rejected"}
func StringSlice(val string) []string {
	if val == "" {
		return nil
	}
	var res []string
	for _, v := range strings.Split(val, ",") {
		clean := strings.ToLower(strings.TrimSpace(v))
		if clean != "" {
			res = append(res, clean)
		}
	}
	return res
}
