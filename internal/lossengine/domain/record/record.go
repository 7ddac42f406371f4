package record

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Field is a single header/value cell of a source row.
type Field struct {
	Header string
	Value  any
}

// Record is one flat source row. Field order follows the source columns and
// decides which header wins a substring match.
type Record []Field

// FromMap builds a record from a header map. Keys are sorted so the result is
// deterministic.
func FromMap(values map[string]any) Record {
	headers := make([]string, 0, len(values))
	for header := range values {
		headers = append(headers, header)
	}
	sort.Strings(headers)

	rec := make(Record, 0, len(headers))
	for _, header := range headers {
		rec = append(rec, Field{Header: header, Value: values[header]})
	}
	return rec
}

// Lookup resolves a value for the first matching candidate header.
// Exact case-insensitive matches across all candidates are tried before any
// substring match.
func (r Record) Lookup(candidates []string) (any, bool) {
	for _, candidate := range candidates {
		want := strings.ToLower(candidate)
		for _, field := range r {
			if field.Header != "" && strings.ToLower(field.Header) == want {
				return field.Value, true
			}
		}
	}
	for _, candidate := range candidates {
		want := strings.ToLower(candidate)
		if want == "" {
			continue
		}
		for _, field := range r {
			if field.Header != "" && strings.Contains(strings.ToLower(field.Header), want) {
				return field.Value, true
			}
		}
	}
	return nil, false
}

// String returns the trimmed text of the resolved value, or fallback when the
// field is absent, nil or blank.
func (r Record) String(candidates []string, fallback string) string {
	value, ok := r.Lookup(candidates)
	if !ok || value == nil {
		return fallback
	}
	text := strings.TrimSpace(formatValue(value))
	if text == "" {
		return fallback
	}
	return text
}

// Number coerces the resolved value to a finite number, or returns fallback.
func (r Record) Number(candidates []string, fallback *float64) *float64 {
	value, ok := r.Lookup(candidates)
	if !ok {
		return fallback
	}
	n, ok := toNumber(value)
	if !ok {
		return fallback
	}
	return &n
}

// YesNo parses a yes/no flag. Unrecognized values fall back to truthiness.
func (r Record) YesNo(candidates []string) bool {
	value, ok := r.Lookup(candidates)
	if !ok {
		return false
	}
	return ParseYesNo(value)
}

// ParseYesNo parses a raw yes/no cell value.
func ParseYesNo(value any) bool {
	if value == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(formatValue(value))) {
	case "yes", "y", "true", "1":
		return true
	case "no", "n", "false", "0":
		return false
	}
	return truthy(value)
}

func toNumber(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint32:
		n = float64(v)
	case uint64:
		n = float64(v)
	case bool:
		if v {
			n = 1
		}
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case interface{ String() string }:
		return v.String()
	default:
		return ""
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	if n, ok := toNumber(value); ok {
		return n != 0
	}
	// NaN and infinities: NaN is falsy, infinities are truthy.
	switch v := value.(type) {
	case float64:
		return !math.IsNaN(v)
	case float32:
		return !math.IsNaN(float64(v))
	}
	return true
}
