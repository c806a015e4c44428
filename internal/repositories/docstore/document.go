package docstore

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Document 表示一条文档：ID 与字段树。字段值已经过 Normalize。
type Document struct {
	ID     string
	Fields map[string]any
}

// Value 按点号路径读取字段值。
func (d *Document) Value(path string) (any, bool) {
	if d == nil {
		return nil, false
	}
	return lookup(d.Fields, path)
}

// String 读取字符串字段，缺失时返回空串。
func (d *Document) String(path string) string {
	v, ok := d.Value(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Int64 读取整型字段，兼容浮点与 json.Number 表示；缺失时返回 0。
func (d *Document) Int64(path string) int64 {
	v, ok := d.Value(path)
	if !ok {
		return 0
	}
	n, _ := toInt64(v)
	return n
}

// Float64 读取数值字段；缺失时返回 0。
func (d *Document) Float64(path string) float64 {
	v, ok := d.Value(path)
	if !ok {
		return 0
	}
	f, _ := toFloat64(v)
	return f
}

// Bool 读取布尔字段。
func (d *Document) Bool(path string) bool {
	v, ok := d.Value(path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Strings 读取字符串数组字段，忽略非字符串元素。
func (d *Document) Strings(path string) []string {
	v, ok := d.Value(path)
	if !ok {
		return nil
	}
	return toStrings(v)
}

// Time 读取时间字段；兼容 time.Time 与 RFC3339 字符串两种存储形式。
func (d *Document) Time(path string) time.Time {
	v, ok := d.Value(path)
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	default:
		return time.Time{}
	}
}

// Map 读取对象字段。
func (d *Document) Map(path string) map[string]any {
	v, ok := d.Value(path)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// Clone 深拷贝文档。
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{ID: d.ID, Fields: cloneMap(d.Fields)}
}

func lookup(fields map[string]any, path string) (any, bool) {
	if fields == nil || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = fields
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Normalize 把字段值转换为存储层统一使用的形态：
// 整数统一为 int64，json.Number 解析为 int64/float64，字符串切片转为 []any，嵌套对象递归处理。
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case time.Time:
		return t.UTC()
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			out = append(out, s)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, Normalize(item))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

// NormalizeFields 对整棵字段树执行 Normalize。
func NormalizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out, _ := Normalize(fields).(map[string]any)
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return int64(n), false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
