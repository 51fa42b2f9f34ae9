// Package conv 读取节点配置（YAML/JSON 解析得到的 map[string]any）中的字段。
//
// YAML 中的数字会解析为 int，JSON 中的数字会解析为 float64，环境变量或手写配置里
// 还可能是字符串，这里统一兼容。
package conv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Number 将数值或数字字符串转为 float64。
func Number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

// Get 按 key 取类型为 T 的值，缺失或类型不符时返回 def。
func Get[T any](m map[string]any, key string, def T) T {
	if t, ok := m[key].(T); ok {
		return t
	}
	return def
}

// Int 按 key 取整数，小数部分截断。
func Int(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	f, ok := Number(v)
	if !ok {
		return def
	}
	return int(f)
}

// Strings 按 key 取字符串列表。
// 元素为数字时按整数格式化（YAML 中未加引号的数字 ID），其他类型的元素被忽略。
func Strings(m map[string]any, key string) []string {
	switch raw := m[key].(type) {
	case []string:
		return append([]string(nil), raw...)
	case []any:
		out := make([]string, 0, len(raw))
		for _, e := range raw {
			switch val := e.(type) {
			case string:
				out = append(out, val)
			case bool:
			default:
				if f, ok := Number(val); ok {
					out = append(out, fmt.Sprintf("%.0f", f))
				}
			}
		}
		return out
	}
	return nil
}
