package http

import (
	"sort"
	"strings"
)

// ParseCookieHeader splits "k=v; k2=v2" into a map. Malformed pairs are
// skipped; later duplicates win.
func ParseCookieHeader(header string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// FormatCookieHeader serializes cookies as "k=v; k2=v2" in name order.
func FormatCookieHeader(cookies map[string]string) string {
	keys := sortedKeys(cookies)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+cookies[k])
	}
	return strings.Join(parts, "; ")
}

// FilterCookies keeps only the named cookies. No names keeps everything.
func FilterCookies(cookies map[string]string, only ...string) map[string]string {
	if len(only) == 0 {
		return cookies
	}
	out := make(map[string]string, len(only))
	for _, name := range only {
		if v, ok := cookies[name]; ok {
			out[name] = v
		}
	}
	return out
}

// MergeCookies overlays cookie maps left to right.
func MergeCookies(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
