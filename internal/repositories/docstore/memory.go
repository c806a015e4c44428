package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory 是进程内的 Store 实现。
//
// 所有操作在同一把互斥锁下执行，因此单次 Update/Upsert 天然原子；
// RunInTransaction 在整个回调期间持有该锁，并在回调失败时恢复快照。
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	clock       func() time.Time
	hooks       []func(op string, collection string) error
}

// NewMemory 构造空的内存文档存储。
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]map[string]any),
		clock:       time.Now,
	}
}

// WithClock 替换 ServerTimestamp 使用的时钟。
func (m *Memory) WithClock(fn func() time.Time) *Memory {
	if fn != nil {
		m.clock = fn
	}
	return m
}

// AddHook 注册在每次操作前调用的钩子；钩子返回错误时操作失败。
// 测试使用它模拟瞬时故障。
func (m *Memory) AddHook(fn func(op string, collection string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

type memTxKey struct{}

func (m *Memory) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*Memory)
	return owner == m
}

func (m *Memory) lock(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) runHooks(op, collection string) error {
	for _, hook := range m.hooks {
		if err := hook(op, collection); err != nil {
			return err
		}
	}
	return nil
}

// Get 实现 Store.Get。
func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	unlock := m.lock(ctx)
	defer unlock()
	if err := m.runHooks("get", collection); err != nil {
		return nil, err
	}
	fields, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: cloneMap(fields)}, nil
}

// Query 实现 Store.Query。
func (m *Memory) Query(ctx context.Context, q Query) ([]*Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	unlock := m.lock(ctx)
	defer unlock()
	if err := m.runHooks("query", q.Collection); err != nil {
		return nil, err
	}

	matched := m.filter(q.Collection, q.Where)
	if q.OrderBy != nil {
		sortDocuments(matched, *q.OrderBy)
		if q.After != nil {
			matched = dropThrough(matched, *q.OrderBy, *q.After)
		}
	} else {
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Count 实现 Store.Count。
func (m *Memory) Count(ctx context.Context, collection string, where ...Predicate) (int64, error) {
	for _, p := range where {
		if err := p.validate(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	}
	unlock := m.lock(ctx)
	defer unlock()
	if err := m.runHooks("count", collection); err != nil {
		return 0, err
	}
	return int64(len(m.filter(collection, where))), nil
}

// Create 实现 Store.Create。id 为空时生成 UUID。
func (m *Memory) Create(ctx context.Context, collection, id string, fields map[string]any) (string, error) {
	unlock := m.lock(ctx)
	defer unlock()
	if err := m.runHooks("create", collection); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	docs := m.collectionFor(collection)
	if _, exists := docs[id]; exists {
		return "", ErrAlreadyExists
	}
	docs[id] = cloneMap(NormalizeFields(fields))
	return id, nil
}

// Update 实现 Store.Update。
func (m *Memory) Update(ctx context.Context, collection, id string, mutations ...Mutation) error {
	unlock := m.lock(ctx)
	defer unlock()
	if err := m.runHooks("update", collection); err != nil {
		return err
	}
	fields, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	return m.applyAtomically(collection, id, fields, mutations)
}

// Upsert 实现 Store.Upsert。
func (m *Memory) Upsert(ctx context.Context, collection, id string, mutations ...Mutation) error {
	unlock := m.lock(ctx)
	defer unlock()
	if err := m.runHooks("upsert", collection); err != nil {
		return err
	}
	docs := m.collectionFor(collection)
	fields, ok := docs[id]
	if !ok {
		fields = map[string]any{}
	}
	return m.applyAtomically(collection, id, fields, mutations)
}

// RunInTransaction 实现 Store.RunInTransaction。嵌套调用复用外层事务。
func (m *Memory) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	txCtx := context.WithValue(ctx, memTxKey{}, m)
	if err := fn(txCtx); err != nil {
		m.collections = snapshot
		return err
	}
	return nil
}

// applyAtomically 在副本上应用变更，成功后整体替换，避免部分写入。
func (m *Memory) applyAtomically(collection, id string, fields map[string]any, mutations []Mutation) error {
	working := cloneMap(fields)
	if err := Apply(working, mutations, m.clock()); err != nil {
		return err
	}
	m.collectionFor(collection)[id] = working
	return nil
}

func (m *Memory) collectionFor(collection string) map[string]map[string]any {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[collection] = docs
	}
	return docs
}

func (m *Memory) filter(collection string, where []Predicate) []*Document {
	docs := m.collections[collection]
	out := make([]*Document, 0, len(docs))
	for id, fields := range docs {
		doc := &Document{ID: id, Fields: fields}
		if matchesAll(doc, where) {
			out = append(out, &Document{ID: id, Fields: cloneMap(fields)})
		}
	}
	return out
}

func (m *Memory) snapshot() map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any, len(m.collections))
	for name, docs := range m.collections {
		copied := make(map[string]map[string]any, len(docs))
		for id, fields := range docs {
			copied[id] = cloneMap(fields)
		}
		out[name] = copied
	}
	return out
}

func matchesAll(doc *Document, where []Predicate) bool {
	for _, p := range where {
		if !p.Matches(doc) {
			return false
		}
	}
	return true
}

// sortDocuments 按排序字段排序，同值按 ID 同向排序。
func sortDocuments(docs []*Document, order Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		return less(docs[i], docs[j], order)
	})
}

func less(a, b *Document, order Order) bool {
	av, _ := a.Value(order.Field)
	bv, _ := b.Value(order.Field)
	cmp := Compare(av, bv)
	if cmp == 0 {
		cmp = Compare(a.ID, b.ID)
	}
	if order.Direction == Desc {
		return cmp > 0
	}
	return cmp < 0
}

// dropThrough 丢弃排序位置不晚于游标的文档。
func dropThrough(docs []*Document, order Order, cursor Cursor) []*Document {
	marker := &Document{ID: cursor.ID, Fields: map[string]any{}}
	if cursor.Value != nil {
		parent, leaf, err := walkParent(marker.Fields, order.Field)
		if err == nil {
			parent[leaf] = Normalize(cursor.Value)
		}
	}
	for i, doc := range docs {
		if less(marker, doc, order) {
			return docs[i:]
		}
	}
	return docs[:0]
}

var _ Store = (*Memory)(nil)
