package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order when coercing a string to a timestamp.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce converts v to the column's declared type. The bool result reports
// whether the returned value conforms to that type; on failure the original
// value is returned unchanged so the caller can record the anomaly without
// dropping data. Nil passes through as conforming for every type.
// Timestamps are the one exception: an unparseable timestamp yields nil.
func (c Column) Coerce(v any) (any, bool) {
	if v == nil {
		return nil, true
	}

	switch c.Type {
	case TypeString:
		return coerceString(v)
	case TypeInt32:
		return coerceInt32(v)
	case TypeFloat32:
		return coerceFloat32(v)
	case TypeBool:
		return coerceBool(v)
	case TypeTimestamp:
		return coerceTimestamp(v)
	}
	return v, false
}

func coerceString(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	// Nested containers have no meaningful string form here.
	return v, false
}

func coerceInt32(v any) (any, bool) {
	switch t := v.(type) {
	case int32:
		return t, true
	case int:
		if t > math.MaxInt32 || t < math.MinInt32 {
			return v, false
		}
		return int32(t), true
	case int64:
		if t > math.MaxInt32 || t < math.MinInt32 {
			return v, false
		}
		return int32(t), true
	case float64:
		if math.IsNaN(t) || t > math.MaxInt32 || t < math.MinInt32 {
			return v, false
		}
		return int32(t), true
	case float32:
		return coerceInt32(float64(t))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return v, false
		}
		return coerceInt32(f)
	}
	return v, false
}

func coerceFloat32(v any) (any, bool) {
	switch t := v.(type) {
	case float32:
		return t, true
	case float64:
		return float32(t), true
	case int:
		return float32(t), true
	case int32:
		return float32(t), true
	case int64:
		return float32(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 32)
		if err != nil {
			return v, false
		}
		return float32(f), true
	}
	return v, false
}

func coerceBool(v any) (any, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
		return v, false
	case float64:
		if t == 0 {
			return false, true
		}
		if t == 1 {
			return true, true
		}
		return v, false
	}
	return v, false
}

func coerceTimestamp(v any) (any, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
		return nil, false
	}
	return nil, false
}
