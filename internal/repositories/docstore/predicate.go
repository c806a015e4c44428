package docstore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PrefixSentinel 是前缀区间查询的上界后缀（Unicode 私有区高位码点）。
const PrefixSentinel = "\uf8ff"

// PredicateOp 谓词类型。
type PredicateOp int

const (
	// OpEquals 字段等值。
	OpEquals PredicateOp = iota
	// OpRange 区间 [Lower, Upper)，任一端为 nil 表示不设界。
	OpRange
	// OpArrayContains 数组字段包含某值。
	OpArrayContains
	// OpArrayContainsAny 数组字段包含任意一个给定值。
	OpArrayContainsAny
)

// Predicate 描述一个查询条件。
type Predicate struct {
	Field  string
	Op     PredicateOp
	Value  any
	Values []any
	Lower  any
	Upper  any
}

// Equals 构造等值谓词。
func Equals(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEquals, Value: Normalize(value)}
}

// Range 构造左闭右开区间谓词。
func Range(field string, lower, upper any) Predicate {
	return Predicate{Field: field, Op: OpRange, Lower: Normalize(lower), Upper: Normalize(upper)}
}

// Prefix 构造字符串前缀谓词：[prefix, prefix+PrefixSentinel)。
func Prefix(field, prefix string) Predicate {
	return Range(field, prefix, prefix+PrefixSentinel)
}

// ArrayContains 构造数组包含谓词。
func ArrayContains(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpArrayContains, Value: Normalize(value)}
}

// ArrayContainsAny 构造数组包含任意值谓词。
func ArrayContainsAny(field string, values ...any) Predicate {
	normalized := make([]any, 0, len(values))
	for _, v := range values {
		normalized = append(normalized, Normalize(v))
	}
	return Predicate{Field: field, Op: OpArrayContainsAny, Values: normalized}
}

func (p Predicate) validate() error {
	if strings.TrimSpace(p.Field) == "" {
		return errors.New("predicate field is required")
	}
	switch p.Op {
	case OpEquals, OpArrayContains:
		return nil
	case OpRange:
		if p.Lower == nil && p.Upper == nil {
			return fmt.Errorf("range on %s requires at least one bound", p.Field)
		}
		return nil
	case OpArrayContainsAny:
		if len(p.Values) == 0 {
			return fmt.Errorf("array-contains-any on %s requires values", p.Field)
		}
		return nil
	default:
		return fmt.Errorf("unsupported predicate op %d", p.Op)
	}
}

// Matches 判断文档是否满足谓词（内存后端与测试使用）。
func (p Predicate) Matches(doc *Document) bool {
	value, ok := doc.Value(p.Field)
	switch p.Op {
	case OpEquals:
		return ok && Compare(value, p.Value) == 0 && sameKind(value, p.Value)
	case OpRange:
		if !ok || value == nil {
			return false
		}
		if p.Lower != nil && (!sameKind(value, p.Lower) || Compare(value, p.Lower) < 0) {
			return false
		}
		if p.Upper != nil && (!sameKind(value, p.Upper) || Compare(value, p.Upper) >= 0) {
			return false
		}
		return true
	case OpArrayContains:
		items, isArray := value.([]any)
		if !ok || !isArray {
			return false
		}
		return arrayHas(items, p.Value)
	case OpArrayContainsAny:
		items, isArray := value.([]any)
		if !ok || !isArray {
			return false
		}
		for _, candidate := range p.Values {
			if arrayHas(items, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func arrayHas(items []any, target any) bool {
	for _, item := range items {
		if sameKind(item, target) && Compare(item, target) == 0 {
			return true
		}
	}
	return false
}

// typeRank 用于跨类型排序：nil < bool < number < string < time。
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, int, int32, float64, float32:
		return 2
	case string:
		return 3
	case time.Time:
		return 4
	default:
		return 5
	}
}

func sameKind(a, b any) bool {
	return typeRank(a) == typeRank(b) && typeRank(a) < 5
}

// Compare 比较两个已归一化的标量值，返回 -1/0/1。不同类型按 typeRank 排序。
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return sign(ra - rb)
	}
	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case string:
		return strings.Compare(av, b.(string))
	case time.Time:
		return av.Compare(b.(time.Time))
	default:
		fa, _ := toFloat64(a)
		fb, _ := toFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
