// Package util holds small parsing helpers shared by the CLI and services.
package util

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParseRanges parses episode selections like "1-3, 5, 7-9" into a sorted,
// de-duplicated slice. Episode numbers start at 1.
func ParseRanges(s string) ([]int, error) {
	var results []int

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			num, err := parseEpisodeNumber(part)
			if err != nil {
				return nil, err
			}
			results = append(results, num)
			continue
		}

		if strings.Contains(hi, "-") {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err1 := parseEpisodeNumber(lo)
		end, err2 := parseEpisodeNumber(hi)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("invalid numbers in range: %s", part)
		}

		if start > end {
			start, end = end, start
		}
		for i := start; i <= end; i++ {
			results = append(results, i)
		}
	}

	slices.Sort(results)
	return slices.Compact(results), nil
}

func parseEpisodeNumber(s string) (int, error) {
	num, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || num < 1 {
		return 0, fmt.Errorf("invalid episode number: %s", s)
	}
	return num, nil
}

// FormatRanges renders sorted episode numbers back into "1-3, 5" form
func FormatRanges(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	sorted := slices.Clone(nums)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var parts []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, n := range sorted[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()

	return strings.Join(parts, ", ")
}
