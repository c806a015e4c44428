package docstore

import (
	"fmt"
	"strings"
	"time"
)

// MutationKind 标识变更原语。
type MutationKind int

const (
	// KindSet 直接覆盖字段值。
	KindSet MutationKind = iota
	// KindIncrement 数值原子增量。
	KindIncrement
	// KindSetAdd 集合添加（已存在则忽略）。
	KindSetAdd
	// KindSetRemove 集合移除（不存在则忽略）。
	KindSetRemove
	// KindServerTimestamp 写入存储端当前时间。
	KindServerTimestamp
)

// String 返回变更原语名称，用于日志。
func (k MutationKind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindIncrement:
		return "increment"
	case KindSetAdd:
		return "set_add"
	case KindSetRemove:
		return "set_remove"
	case KindServerTimestamp:
		return "server_timestamp"
	default:
		return "unknown"
	}
}

// Mutation 描述作用于单个字段路径的一次变更。
type Mutation struct {
	Path   string
	Kind   MutationKind
	Value  any
	Delta  int64
	Values []string
}

// Set 构造覆盖写入。
func Set(path string, value any) Mutation {
	return Mutation{Path: path, Kind: KindSet, Value: Normalize(value)}
}

// Increment 构造原子增量。
func Increment(path string, delta int64) Mutation {
	return Mutation{Path: path, Kind: KindIncrement, Delta: delta}
}

// SetAdd 构造集合添加。
func SetAdd(path string, values ...string) Mutation {
	return Mutation{Path: path, Kind: KindSetAdd, Values: values}
}

// SetRemove 构造集合移除。
func SetRemove(path string, values ...string) Mutation {
	return Mutation{Path: path, Kind: KindSetRemove, Values: values}
}

// ServerTimestamp 构造存储端时间戳写入。
func ServerTimestamp(path string) Mutation {
	return Mutation{Path: path, Kind: KindServerTimestamp}
}

// Apply 将一组变更按顺序应用到字段树上（原地修改）。
// 内存与 PostgreSQL 后端在持有行锁/全局锁的前提下调用，保证原子性。
func Apply(fields map[string]any, mutations []Mutation, now time.Time) error {
	for _, m := range mutations {
		if err := applyOne(fields, m, now); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(fields map[string]any, m Mutation, now time.Time) error {
	parent, leaf, err := walkParent(fields, m.Path)
	if err != nil {
		return err
	}
	switch m.Kind {
	case KindSet:
		parent[leaf] = cloneValue(m.Value)
	case KindIncrement:
		current := parent[leaf]
		if current == nil {
			parent[leaf] = m.Delta
			return nil
		}
		if n, ok := toInt64(current); ok {
			parent[leaf] = n + m.Delta
			return nil
		}
		if f, ok := toFloat64(current); ok {
			parent[leaf] = f + float64(m.Delta)
			return nil
		}
		return fmt.Errorf("%w: %s is not numeric", ErrInvalidPath, m.Path)
	case KindSetAdd:
		existing, err := setValues(parent[leaf], m.Path)
		if err != nil {
			return err
		}
		for _, v := range m.Values {
			if !containsString(existing, v) {
				existing = append(existing, v)
			}
		}
		parent[leaf] = existing
	case KindSetRemove:
		existing, err := setValues(parent[leaf], m.Path)
		if err != nil {
			return err
		}
		kept := make([]any, 0, len(existing))
		for _, item := range existing {
			s, _ := item.(string)
			if !containsPlain(m.Values, s) {
				kept = append(kept, item)
			}
		}
		parent[leaf] = kept
	case KindServerTimestamp:
		parent[leaf] = now.UTC()
	default:
		return fmt.Errorf("%w: unsupported mutation %d", ErrInvalidPath, m.Kind)
	}
	return nil
}

// walkParent 定位路径的父对象，沿途按需创建中间对象。
func walkParent(fields map[string]any, path string) (map[string]any, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parts := strings.Split(path, ".")
	current := fields
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok || next == nil {
			child := map[string]any{}
			current[part] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s is not an object", ErrInvalidPath, part)
		}
		current = child
	}
	return current, parts[len(parts)-1], nil
}

func setValues(v any, path string) ([]any, error) {
	switch t := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out, nil
	case []string:
		return Normalize(t).([]any), nil
	default:
		return nil, fmt.Errorf("%w: %s is not an array", ErrInvalidPath, path)
	}
}

func containsString(items []any, target string) bool {
	for _, item := range items {
		if s, ok := item.(string); ok && s == target {
			return true
		}
	}
	return false
}

func containsPlain(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
