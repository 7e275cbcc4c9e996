package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDim converts an index phrase into the half open range [i1, i2) of an
// axis holding max items:
//
//	":"   = full range, from 0 to max
//	"end" = last index, from max-1 to max
//	"N"   = single index, from N to N+1
//	"a:b" = range, from a to b
//	":N"  = range, from 0 to N
//	"N:"  = range, from N to max
//
// Negative indices count from max.
func ParseDim(dim string, max int) (i1, i2 int, err error) {
	dim = strings.TrimSpace(dim)
	switch dim {
	case "end":
		i1, i2 = max-1, max
	case ":":
		i1, i2 = 0, max
	default:
		if i1, i2, err = parseRange(dim, max); err != nil {
			return
		}
	}
	if i1 < 0 || i2 > max || i1 >= i2 {
		return 0, 0, fmt.Errorf("range %q does not fit in %d items", dim, max)
	}
	return
}

func parseRange(dim string, max int) (i1, i2 int, err error) {
	var (
		splits = strings.Split(dim, ":")
		bad    = fmt.Errorf("malformed range %q", dim)
	)
	if len(splits) > 2 {
		return 0, 0, bad
	}
	index := func(s string, empty int) (int, error) {
		if len(s) == 0 {
			return empty, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, bad
		}
		if i < 0 {
			i += max
		}
		return i, nil
	}
	if len(splits) == 1 {
		if len(splits[0]) == 0 {
			return 0, 0, bad
		}
		i1, err = index(splits[0], 0)
		return i1, i1 + 1, err
	}
	if i1, err = index(splits[0], 0); err != nil {
		return
	}
	i2, err = index(splits[1], max)
	return
}

// ParseIndexList converts a comma separated list of index phrases, each one
// accepted by ParseDim, into the indices it covers, in order.
func ParseIndexList(list string, max int) (ks []int, err error) {
	for _, dim := range strings.Split(list, ",") {
		var i1, i2 int
		if i1, i2, err = ParseDim(dim, max); err != nil {
			return nil, err
		}
		for k := i1; k < i2; k++ {
			ks = append(ks, k)
		}
	}
	return
}
