package refiner

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// canonicalRows turns the first n rows into an order-independent key. Numbers
// compare by value, so 5 and 5.0 are equal, and booleans count as 1 and 0.
func canonicalRows(rows [][]any, n int) string {
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	tokens := make([][]string, 0, len(rows))
	for _, row := range rows {
		tokenRow := make([]string, len(row))
		for i, value := range row {
			tokenRow[i] = canonicalValue(value)
		}
		tokens = append(tokens, tokenRow)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return lessRow(tokens[i], tokens[j])
	})
	raw, _ := json.Marshal(tokens)
	return string(raw)
}

func lessRow(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func canonicalValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "n:1"
		}
		return "n:0"
	case int:
		return "n:" + strconv.FormatInt(int64(v), 10)
	case int8:
		return "n:" + strconv.FormatInt(int64(v), 10)
	case int16:
		return "n:" + strconv.FormatInt(int64(v), 10)
	case int32:
		return "n:" + strconv.FormatInt(int64(v), 10)
	case int64:
		return "n:" + strconv.FormatInt(v, 10)
	case uint:
		return "n:" + strconv.FormatUint(uint64(v), 10)
	case uint8:
		return "n:" + strconv.FormatUint(uint64(v), 10)
	case uint16:
		return "n:" + strconv.FormatUint(uint64(v), 10)
	case uint32:
		return "n:" + strconv.FormatUint(uint64(v), 10)
	case uint64:
		return "n:" + strconv.FormatUint(v, 10)
	case float32:
		return canonicalFloat(float64(v))
	case float64:
		return canonicalFloat(v)
	case string:
		return "s:" + v
	case []byte:
		return "s:" + string(v)
	case time.Time:
		return "t:" + v.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return "s:" + v.String()
	default:
		return "v:" + strings.TrimSpace(fmt.Sprint(v))
	}
}

func canonicalFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1<<63 {
		return "n:" + strconv.FormatInt(int64(v), 10)
	}
	return "n:" + strconv.FormatFloat(v, 'g', -1, 64)
}
