package harness

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// \s spans newlines, so blank lines before a margin are consumed with it.
var marginPattern = regexp.MustCompile(`(?m)^\s+\|`)

// Dedent strips the whitespace up to and including a leading '|' on every
// line, and one trailing newline.
//
//	Dedent(`
//	    |first
//	    |  second
//	`) == "first\n  second"
func Dedent(s string) string {
	return strings.TrimSuffix(marginPattern.ReplaceAllString(s, ""), "\n")
}

// HashInspect renders m with its keys sorted, so output is stable across runs.
func HashInspect(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q => %s", k, inspect(m[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func inspect(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	case map[string]any:
		return HashInspect(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
