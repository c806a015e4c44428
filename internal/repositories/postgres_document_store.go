package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// documentsTable 是 001_create_documents.sql 创建的表。
const documentsTable = "listing.documents"

// pgTimeLayout 把时间编码为定宽 UTC 字符串，保证 JSONB 内按字典序比较即按时间比较。
const pgTimeLayout = "2006-01-02T15:04:05.000000000Z"

var pathSegment = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// querier 抽象 pgxpool.Pool 与 pgx.Tx 的公共方法。
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgSessionKey struct{}

// PostgresDocumentStore 基于 listing.documents JSONB 表实现 docstore.Store。
//
// 单文档变更在事务内先 SELECT ... FOR UPDATE 锁行，再在 Go 侧应用 docstore.Apply 并整体回写，
// 因此同一文档上的并发增量串行化、不会丢失。
type PostgresDocumentStore struct {
	pool  *pgxpool.Pool
	tx    txmanager.Manager
	log   *log.Helper
	clock func() time.Time
}

// NewPostgresDocumentStore 构造 PostgreSQL 文档存储。
func NewPostgresDocumentStore(pool *pgxpool.Pool, tx txmanager.Manager, logger log.Logger) *PostgresDocumentStore {
	return &PostgresDocumentStore{
		pool:  pool,
		tx:    tx,
		log:   log.NewHelper(logger),
		clock: time.Now,
	}
}

// WithClock 替换 ServerTimestamp 使用的时钟。
func (s *PostgresDocumentStore) WithClock(fn func() time.Time) *PostgresDocumentStore {
	if fn != nil {
		s.clock = fn
	}
	return s
}

func (s *PostgresDocumentStore) session(ctx context.Context) txmanager.Session {
	sess, _ := ctx.Value(pgSessionKey{}).(txmanager.Session)
	return sess
}

func (s *PostgresDocumentStore) conn(ctx context.Context) querier {
	if sess := s.session(ctx); sess != nil {
		return sess.Tx()
	}
	return s.pool
}

// RunInTransaction 通过 txmanager 开启读写事务；嵌套调用复用外层事务。
func (s *PostgresDocumentStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.session(ctx) != nil {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		return fn(context.WithValue(txCtx, pgSessionKey{}, sess))
	})
}

// Get 实现 docstore.Store。事务内读取会以 FOR UPDATE 锁行直到提交，
// 读-改-写的后续写入基于的始终是最新已提交版本。
func (s *PostgresDocumentStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	query := `SELECT data FROM ` + documentsTable + ` WHERE collection = $1 AND id = $2`
	if s.session(ctx) != nil {
		query += ` FOR UPDATE`
	}
	var raw []byte
	err := s.conn(ctx).QueryRow(ctx, query, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}
	fields, err := decodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return &docstore.Document{ID: id, Fields: fields}, nil
}

// Query 实现 docstore.Store。
func (s *PostgresDocumentStore) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	b := &sqlBuilder{}
	where, err := b.where(q.Collection, q.Where)
	if err != nil {
		return nil, err
	}

	var sql strings.Builder
	sql.WriteString(`SELECT id, data FROM ` + documentsTable + ` WHERE ` + where)

	if q.OrderBy != nil {
		expr, err := jsonExpr(q.OrderBy.Field, false)
		if err != nil {
			return nil, err
		}
		if q.After != nil {
			cond, err := b.cursor(expr, *q.OrderBy, *q.After)
			if err != nil {
				return nil, err
			}
			sql.WriteString(` AND ` + cond)
		}
		if q.OrderBy.Direction == docstore.Desc {
			sql.WriteString(` ORDER BY ` + expr + ` DESC NULLS LAST, id COLLATE "C" DESC`)
		} else {
			sql.WriteString(` ORDER BY ` + expr + ` ASC NULLS FIRST, id COLLATE "C" ASC`)
		}
	} else {
		sql.WriteString(` ORDER BY id COLLATE "C" ASC`)
	}
	if q.Limit > 0 {
		sql.WriteString(` LIMIT ` + b.arg(q.Limit))
	}

	rows, err := s.conn(ctx).Query(ctx, sql.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []*docstore.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		fields, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", q.Collection, id, err)
		}
		docs = append(docs, &docstore.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Collection, err)
	}
	return docs, nil
}

// Count 实现 docstore.Store。
func (s *PostgresDocumentStore) Count(ctx context.Context, collection string, where ...docstore.Predicate) (int64, error) {
	b := &sqlBuilder{}
	cond, err := b.where(collection, where)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := s.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM `+documentsTable+` WHERE `+cond, b.args...,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return total, nil
}

// Create 实现 docstore.Store。id 为空时生成 UUID。
func (s *PostgresDocumentStore) Create(ctx context.Context, collection, id string, fields map[string]any) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	raw, err := encodeDocument(docstore.NormalizeFields(fields))
	if err != nil {
		return "", fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	tag, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO `+documentsTable+` (collection, id, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(raw),
	)
	if err != nil {
		return "", fmt.Errorf("create document %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return "", docstore.ErrAlreadyExists
	}
	return id, nil
}

// Update 实现 docstore.Store。
func (s *PostgresDocumentStore) Update(ctx context.Context, collection, id string, mutations ...docstore.Mutation) error {
	return s.RunInTransaction(ctx, func(txCtx context.Context) error {
		return s.mutateLocked(txCtx, collection, id, mutations)
	})
}

// Upsert 实现 docstore.Store：先以空文档占位，再加锁应用变更。
func (s *PostgresDocumentStore) Upsert(ctx context.Context, collection, id string, mutations ...docstore.Mutation) error {
	return s.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.conn(txCtx).Exec(txCtx,
			`INSERT INTO `+documentsTable+` (collection, id) VALUES ($1, $2)
			 ON CONFLICT (collection, id) DO NOTHING`,
			collection, id,
		); err != nil {
			return fmt.Errorf("upsert placeholder %s/%s: %w", collection, id, err)
		}
		return s.mutateLocked(txCtx, collection, id, mutations)
	})
}

func (s *PostgresDocumentStore) mutateLocked(ctx context.Context, collection, id string, mutations []docstore.Mutation) error {
	db := s.conn(ctx)

	// 1. 锁定目标行
	var raw []byte
	err := db.QueryRow(ctx,
		`SELECT data FROM `+documentsTable+` WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return docstore.ErrNotFound
		}
		return fmt.Errorf("lock document %s/%s: %w", collection, id, err)
	}

	// 2. 应用变更
	fields, err := decodeDocument(raw)
	if err != nil {
		return fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	if err := docstore.Apply(fields, mutations, s.clock()); err != nil {
		return err
	}

	// 3. 回写
	encoded, err := encodeDocument(fields)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	if _, err := db.Exec(ctx,
		`UPDATE `+documentsTable+` SET data = $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, string(encoded),
	); err != nil {
		return fmt.Errorf("update document %s/%s: %w", collection, id, err)
	}
	s.log.WithContext(ctx).Debugf("document mutated: collection=%s id=%s mutations=%d", collection, id, len(mutations))
	return nil
}

// sqlBuilder 累积位置参数。
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) jsonArg(v any) (string, error) {
	raw, err := json.Marshal(encodeValue(v))
	if err != nil {
		return "", err
	}
	return b.arg(string(raw)) + "::jsonb", nil
}

func (b *sqlBuilder) where(collection string, predicates []docstore.Predicate) (string, error) {
	conds := []string{"collection = " + b.arg(collection)}
	for _, p := range predicates {
		cond, err := b.predicate(p)
		if err != nil {
			return "", fmt.Errorf("%w: %v", docstore.ErrInvalidQuery, err)
		}
		conds = append(conds, cond)
	}
	return strings.Join(conds, " AND "), nil
}

func (b *sqlBuilder) predicate(p docstore.Predicate) (string, error) {
	switch p.Op {
	case docstore.OpEquals:
		doc, err := nestedValue(p.Field, p.Value)
		if err != nil {
			return "", err
		}
		placeholder, err := b.jsonArg(doc)
		if err != nil {
			return "", err
		}
		return "data @> " + placeholder, nil
	case docstore.OpArrayContains:
		doc, err := nestedValue(p.Field, []any{p.Value})
		if err != nil {
			return "", err
		}
		placeholder, err := b.jsonArg(doc)
		if err != nil {
			return "", err
		}
		return "data @> " + placeholder, nil
	case docstore.OpArrayContainsAny:
		if len(p.Values) == 0 {
			return "", fmt.Errorf("array-contains-any on %s requires values", p.Field)
		}
		parts := make([]string, 0, len(p.Values))
		for _, v := range p.Values {
			doc, err := nestedValue(p.Field, []any{v})
			if err != nil {
				return "", err
			}
			placeholder, err := b.jsonArg(doc)
			if err != nil {
				return "", err
			}
			parts = append(parts, "data @> "+placeholder)
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	case docstore.OpRange:
		return b.rangeCondition(p)
	default:
		return "", fmt.Errorf("unsupported predicate op %d", p.Op)
	}
}

// rangeCondition 按界值类型选择比较方式：字符串与时间按 "C" 排序规则比较文本，数值转 numeric。
func (b *sqlBuilder) rangeCondition(p docstore.Predicate) (string, error) {
	bound := p.Lower
	if bound == nil {
		bound = p.Upper
	}
	textExpr, err := jsonExpr(p.Field, true)
	if err != nil {
		return "", err
	}
	valueExpr, err := jsonExpr(p.Field, false)
	if err != nil {
		return "", err
	}

	var column string
	switch bound.(type) {
	case string, time.Time:
		column = fmt.Sprintf(`(CASE WHEN jsonb_typeof(%s) = 'string' THEN %s END) COLLATE "C"`, valueExpr, textExpr)
	case int64, float64:
		column = fmt.Sprintf(`(CASE WHEN jsonb_typeof(%s) = 'number' THEN (%s)::numeric END)`, valueExpr, textExpr)
	default:
		return "", fmt.Errorf("range on %s: unsupported bound type %T", p.Field, bound)
	}

	var conds []string
	if p.Lower != nil {
		conds = append(conds, column+" >= "+b.scalarArg(p.Lower))
	}
	if p.Upper != nil {
		conds = append(conds, column+" < "+b.scalarArg(p.Upper))
	}
	return "(" + strings.Join(conds, " AND ") + ")", nil
}

func (b *sqlBuilder) scalarArg(v any) string {
	switch t := v.(type) {
	case time.Time:
		return b.arg(t.UTC().Format(pgTimeLayout))
	case int64:
		return b.arg(t) + "::numeric"
	case float64:
		return b.arg(t) + "::numeric"
	default:
		return b.arg(v)
	}
}

// cursor 生成"排在游标之后"的条件，与 ORDER BY 的 NULLS 规则保持一致。
func (b *sqlBuilder) cursor(expr string, order docstore.Order, c docstore.Cursor) (string, error) {
	id := b.arg(c.ID)
	if c.Value == nil {
		if order.Direction == docstore.Desc {
			return fmt.Sprintf(`(%s IS NULL AND id COLLATE "C" < %s)`, expr, id), nil
		}
		return fmt.Sprintf(`(%s IS NOT NULL OR id COLLATE "C" > %s)`, expr, id), nil
	}
	value, err := b.jsonArg(c.Value)
	if err != nil {
		return "", err
	}
	if order.Direction == docstore.Desc {
		return fmt.Sprintf(`(%[1]s < %[2]s OR (%[1]s = %[2]s AND id COLLATE "C" < %[3]s) OR %[1]s IS NULL)`, expr, value, id), nil
	}
	return fmt.Sprintf(`(%[1]s > %[2]s OR (%[1]s = %[2]s AND id COLLATE "C" > %[3]s))`, expr, value, id), nil
}

// jsonExpr 渲染字段路径表达式；路径段仅允许字母数字下划线，可安全内联以命中表达式索引。
func jsonExpr(field string, asText bool) (string, error) {
	parts := strings.Split(field, ".")
	for _, part := range parts {
		if !pathSegment.MatchString(part) {
			return "", fmt.Errorf("%w: %q", docstore.ErrInvalidPath, field)
		}
	}
	if len(parts) == 1 {
		if asText {
			return "(data ->> '" + field + "')", nil
		}
		return "(data -> '" + field + "')", nil
	}
	path := "'{" + strings.Join(parts, ",") + "}'"
	if asText {
		return "(data #>> " + path + ")", nil
	}
	return "(data #> " + path + ")", nil
}

func nestedValue(field string, value any) (map[string]any, error) {
	parts := strings.Split(field, ".")
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, field)
		}
	}
	var current any = value
	for i := len(parts) - 1; i >= 0; i-- {
		current = map[string]any{parts[i]: current}
	}
	return current.(map[string]any), nil
}

// encodeValue 把 time.Time 转为定宽字符串，其余值原样递归。
func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(pgTimeLayout)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = encodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = encodeValue(item)
		}
		return out
	default:
		return v
	}
}

func encodeDocument(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	return json.Marshal(encodeValue(fields))
}

func decodeDocument(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return docstore.NormalizeFields(fields), nil
}

var _ docstore.Store = (*PostgresDocumentStore)(nil)
