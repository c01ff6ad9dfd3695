package report

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var monthRanks = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10,
	"noviembre": 11, "diciembre": 12,
}

// monthRank returns 1-12 for Spanish month names or month numbers, 0 otherwise.
func monthRank(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if r, ok := monthRanks[s]; ok {
		return r
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return n
	}
	return 0
}

// SortMonths orders month labels by calendar; unknown labels follow,
// collated.
func SortMonths(values []string) {
	col := collate.New(language.Spanish)
	sort.SliceStable(values, func(i, j int) bool {
		ri, rj := monthRank(values[i]), monthRank(values[j])
		switch {
		case ri != 0 && rj != 0:
			return ri < rj
		case ri != 0:
			return true
		case rj != 0:
			return false
		}
		return col.CompareString(values[i], values[j]) < 0
	})
}
