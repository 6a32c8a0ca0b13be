package utils

import (
	"sort"
	"strconv"
	"strings"
)

// SupportedLocales are the locales the API translates its messages into.
var SupportedLocales = []string{"en", "zh"}

type langRange struct {
	tag string
	q   float64
}

// parseAcceptLanguage returns the ranges of an Accept-Language header ordered by descending q.
// Ranges with q=0 or a malformed weight are dropped.
func parseAcceptLanguage(header string) []langRange {
	var out []langRange
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(strings.TrimSpace(part), ";")
		tag := strings.ToLower(strings.TrimSpace(fields[0]))
		if tag == "" {
			continue
		}
		q := 1.0
		for _, param := range fields[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				q = 0
				break
			}
			q = f
		}
		if q <= 0 {
			continue
		}
		out = append(out, langRange{tag: tag, q: q})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].q > out[j].q })
	return out
}

// DetermineLocale picks the locale from an explicit query value, then Accept-Language, then def.
// Region subtags fall back to their base language (zh-CN -> zh).
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := make(map[string]bool, len(supported))
	for _, s := range supported {
		sup[strings.ToLower(s)] = true
	}
	match := func(tag string) (string, bool) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if sup[tag] {
			return tag, true
		}
		if base, _, ok := strings.Cut(tag, "-"); ok && sup[base] {
			return base, true
		}
		return "", false
	}

	if l, ok := match(queryLang); ok {
		return l
	}
	for _, r := range parseAcceptLanguage(acceptLang) {
		if l, ok := match(r.tag); ok {
			return l
		}
	}
	if l, ok := match(def); ok {
		return l
	}
	if len(supported) > 0 {
		return strings.ToLower(supported[0])
	}
	return "en"
}
