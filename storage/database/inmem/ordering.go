package inmemdb

import (
	"sort"
	"strings"
	"time"

	"github.com/chetansharma-meta/Exam-Portal/core"
)

// comparator returns <0, 0 or >0 like strings.Compare.
type comparator[T any] func(a, b T) int

func compareStrings(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) }

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sortRecords sorts items by the given orderings; unknown fields are ignored.
// Ties keep comparing with the next ordering, then with fallback.
func sortRecords[T any](items []T, ordering []core.DBOrdering, fields map[string]comparator[T], fallback core.DBOrdering) {
	ords := make([]core.DBOrdering, 0, len(ordering)+1)
	for _, ord := range ordering {
		if _, ok := fields[ord.Field]; ok {
			ords = append(ords, ord)
		}
	}
	ords = append(ords, fallback)

	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ords {
			cmp := fields[ord.Field](items[i], items[j])
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}
