package telegram

import (
	"errors"
	"strconv"
	"strings"
)

var errCompareArgs = errors.New("compare expects two iteration numbers")

// ParseApplyArgs: "all" или список id через пробел/запятую. Id приводятся к верхнему регистру.
func ParseApplyArgs(args string) (ids []string, all bool) {
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	})
	if len(fields) == 1 && (strings.EqualFold(fields[0], "all") || fields[0] == "все") {
		return nil, true
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		id := strings.ToUpper(f)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, false
}

// ParseCompareArgs: пусто -> (0, 0), то есть последние две итерации; иначе ровно два числа
func ParseCompareArgs(args string) (current, previous int, err error) {
	fields := strings.Fields(args)
	switch len(fields) {
	case 0:
		return 0, 0, nil
	case 2:
	default:
		return 0, 0, errCompareArgs
	}

	current, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, errCompareArgs
	}
	previous, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, errCompareArgs
	}
	return current, previous, nil
}
