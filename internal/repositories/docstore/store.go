// Package docstore 定义文档存储抽象（CounterStore）：按集合读写文档、谓词查询、
// 原子变更原语（Increment / SetAdd / SetRemove / ServerTimestamp）以及事务边界。
//
// 具体后端：
//   - Memory：进程内实现，供单元测试与本地开发使用
//   - repositories.PostgresDocumentStore：PostgreSQL JSONB 表
//   - repositories.MongoDocumentStore：MongoDB 集合
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound 表示目标文档不存在。
	ErrNotFound = errors.New("docstore: document not found")
	// ErrAlreadyExists 表示以指定 ID 创建文档时发生冲突。
	ErrAlreadyExists = errors.New("docstore: document already exists")
	// ErrInvalidPath 表示字段路径与文档结构冲突（例如中间节点不是对象）。
	ErrInvalidPath = errors.New("docstore: invalid field path")
	// ErrInvalidQuery 表示查询参数非法。
	ErrInvalidQuery = errors.New("docstore: invalid query")
)

// Store 是所有计数组件共享的文档存储接口。
//
// 约定：
//   - 字段路径使用点号分隔（例如 positionStats.top.clicks）
//   - Update 作用于不存在的文档时返回 ErrNotFound；Upsert 会先创建空文档再应用变更
//   - 单次 Update/Upsert 内的全部 Mutation 对同一文档原子生效
//   - RunInTransaction 内部发起的调用共享同一事务；fn 返回错误时整体回滚
//   - 事务内 Get 到的文档在提交前不会被其他事务修改（行锁或写冲突重试），读-改-写不会基于陈旧值
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]*Document, error)
	Count(ctx context.Context, collection string, where ...Predicate) (int64, error)
	Create(ctx context.Context, collection, id string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, mutations ...Mutation) error
	Upsert(ctx context.Context, collection, id string, mutations ...Mutation) error
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Direction 表示排序方向。
type Direction int

const (
	// Asc 升序。
	Asc Direction = iota
	// Desc 降序。
	Desc
)

// Order 描述单字段排序；同值文档按 ID 以相同方向排序，保证分页稳定。
type Order struct {
	Field     string
	Direction Direction
}

// Cursor 指向上一页最后一条文档的位置（排序字段值 + ID）。
type Cursor struct {
	Value any
	ID    string
}

// Query 描述一次集合查询。Limit <= 0 表示不限制条数。
type Query struct {
	Collection string
	Where      []Predicate
	OrderBy    *Order
	Limit      int
	After      *Cursor
}

// Validate 校验查询参数。
func (q Query) Validate() error {
	if q.Collection == "" {
		return errors.Join(ErrInvalidQuery, errors.New("collection is required"))
	}
	if q.After != nil && q.OrderBy == nil {
		return errors.Join(ErrInvalidQuery, errors.New("cursor requires order by"))
	}
	for _, p := range q.Where {
		if err := p.validate(); err != nil {
			return errors.Join(ErrInvalidQuery, err)
		}
	}
	return nil
}

// CursorAfter 基于文档与排序字段构造游标。
func CursorAfter(doc *Document, order Order) *Cursor {
	if doc == nil {
		return nil
	}
	value, _ := doc.Value(order.Field)
	return &Cursor{Value: value, ID: doc.ID}
}
