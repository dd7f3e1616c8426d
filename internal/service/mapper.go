package service

import (
	"math"
	"strconv"
	"strings"

	"printer_monitor/internal/ipp"
	"printer_monitor/internal/models"
)

// ippStateProcessing is the enum value of printer-state "processing".
const ippStateProcessing = 4

// Level bounds for consumables.
const (
	minLevel = 0
	maxLevel = 100
)

// MapAttributes converts a printer attribute group into a snapshot.
// A nil bag means the printer did not answer.
func MapAttributes(bag ipp.AttributeBag, trackConsumables bool) models.StateSnapshot {
	if bag == nil {
		return models.StateSnapshot{}
	}

	snap := models.StateSnapshot{
		Reachable: true,
		Active:    isProcessing(bag[ipp.AttrPrinterState]),
	}
	if trackConsumables {
		snap.Consumables = pairMarkers(asList(bag[ipp.AttrMarkerNames]), asList(bag[ipp.AttrMarkerLevels]))
	}
	return snap
}

func isProcessing(v any) bool {
	switch s := firstValue(v).(type) {
	case string:
		return strings.EqualFold(strings.TrimSpace(s), ipp.StateProcessing)
	default:
		n, ok := asInt(s)
		return ok && n == ippStateProcessing
	}
}

// pairMarkers pairs names with levels by index up to the shorter list.
func pairMarkers(names, levels []any) []models.ConsumableReading {
	n := len(names)
	if len(levels) < n {
		n = len(levels)
	}
	out := make([]models.ConsumableReading, 0, n)
	for i := 0; i < n; i++ {
		name, _ := names[i].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		level, ok := asInt(levels[i])
		if !ok {
			continue
		}
		out = append(out, models.ConsumableReading{Index: i, Name: name, Level: clampLevel(level)})
	}
	return out
}

// asList normalizes a scalar-or-list attribute value to a list.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	default:
		return []any{v}
	}
}

func firstValue(v any) any {
	if l := asList(v); len(l) > 0 {
		return l[0]
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(math.Round(float64(n))), true
	case float64:
		return int(math.Round(n)), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func clampLevel(level int) int {
	switch {
	case level < minLevel:
		return minLevel
	case level > maxLevel:
		return maxLevel
	}
	return level
}
