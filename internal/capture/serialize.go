package capture

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	maxSerializeDepth  = 4
	maxStringLength    = 2000
	maxCollectionItems = 50

	// serializeFallback is returned whenever an argument cannot be
	// rendered safely.
	serializeFallback = "[unserializable]"
)

// FormatArgs renders console arguments into a single line of text. It never
// panics: depth is limited, strings and collections are capped, and any
// failure degrades to a fixed placeholder.
func FormatArgs(args []any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = serializeFallback
		}
	}()

	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, formatValue(a, 0))
	}
	return strings.Join(parts, " ")
}

func formatValue(v any, depth int) string {
	if depth > maxSerializeDepth {
		return "..."
	}

	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return capString(val)
	case error:
		return capString(val.Error())
	case fmt.Stringer:
		return capString(safeStringer(val))
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []any:
		return formatSlice(val, depth)
	case map[string]any:
		return formatMap(val, depth)
	default:
		return capString(fmt.Sprintf("%v", val))
	}
}

func formatSlice(items []any, depth int) string {
	var sb strings.Builder
	sb.WriteString("[")
	n := len(items)
	if n > maxCollectionItems {
		n = maxCollectionItems
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatValue(items[i], depth+1))
	}
	if len(items) > maxCollectionItems {
		fmt.Fprintf(&sb, ", ...%d more", len(items)-maxCollectionItems)
	}
	sb.WriteString("]")
	return sb.String()
}

func formatMap(m map[string]any, depth int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	n := len(keys)
	if n > maxCollectionItems {
		n = maxCollectionItems
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(keys[i])
		sb.WriteString(": ")
		sb.WriteString(formatValue(m[keys[i]], depth+1))
	}
	if len(keys) > maxCollectionItems {
		fmt.Fprintf(&sb, ", ...%d more", len(keys)-maxCollectionItems)
	}
	sb.WriteString("}")
	return sb.String()
}

// safeStringer guards against Stringer implementations that panic.
func safeStringer(s fmt.Stringer) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = serializeFallback
		}
	}()
	return s.String()
}

func capString(s string) string {
	if len(s) <= maxStringLength {
		return s
	}
	// Cut at a rune boundary.
	cut := maxStringLength
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
