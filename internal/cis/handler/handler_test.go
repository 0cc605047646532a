package handler

import (
	"strconv"
	"strings"
)

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
