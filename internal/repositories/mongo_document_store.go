package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoDocumentStore 以 MongoDB 集合实现 docstore.Store。
//
// 变更原语直接映射为更新操作符：Increment → $inc，SetAdd → $addToSet/$each，
// SetRemove → $pull/$in，ServerTimestamp → $currentDate，Set → $set。
// RunInTransaction 依赖副本集上的多文档事务。
type MongoDocumentStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *log.Helper
}

// NewMongoDocumentStore 构造 MongoDB 文档存储。
func NewMongoDocumentStore(db *mongo.Database, logger log.Logger) *MongoDocumentStore {
	return &MongoDocumentStore{
		client: db.Client(),
		db:     db,
		log:    log.NewHelper(logger),
	}
}

// RunInTransaction 实现 docstore.Store。已处于会话中时复用外层事务。
// 事务以快照读运行；读后被其他事务改写的文档在写入时触发 WriteConflict，
// WithTransaction 按 TransientTransactionError 整体重试 fn。
func (s *MongoDocumentStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txOpts)
	return err
}

// Get 实现 docstore.Store。
func (s *MongoDocumentStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}
	return toDocument(raw), nil
}

// Query 实现 docstore.Store。
func (s *MongoDocumentStore) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter, err := mongoFilter(q.Where)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if q.OrderBy != nil {
		dir := 1
		if q.OrderBy.Direction == docstore.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy.Field, Value: dir}, {Key: "_id", Value: dir}})
		if q.After != nil {
			filter = append(filter, bson.E{Key: "$or", Value: cursorFilter(*q.OrderBy, *q.After)})
		}
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(q.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer cur.Close(ctx)

	var docs []*docstore.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", q.Collection, err)
		}
		docs = append(docs, toDocument(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Collection, err)
	}
	return docs, nil
}

// Count 实现 docstore.Store。
func (s *MongoDocumentStore) Count(ctx context.Context, collection string, where ...docstore.Predicate) (int64, error) {
	filter, err := mongoFilter(where)
	if err != nil {
		return 0, err
	}
	total, err := s.db.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return total, nil
}

// Create 实现 docstore.Store。id 为空时生成 UUID。
func (s *MongoDocumentStore) Create(ctx context.Context, collection, id string, fields map[string]any) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	doc := bson.M{}
	for k, v := range docstore.NormalizeFields(fields) {
		doc[k] = v
	}
	doc["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", docstore.ErrAlreadyExists
		}
		return "", fmt.Errorf("create document %s/%s: %w", collection, id, err)
	}
	return id, nil
}

// Update 实现 docstore.Store。
func (s *MongoDocumentStore) Update(ctx context.Context, collection, id string, mutations ...docstore.Mutation) error {
	return s.update(ctx, collection, id, false, mutations)
}

// Upsert 实现 docstore.Store。
func (s *MongoDocumentStore) Upsert(ctx context.Context, collection, id string, mutations ...docstore.Mutation) error {
	return s.update(ctx, collection, id, true, mutations)
}

func (s *MongoDocumentStore) update(ctx context.Context, collection, id string, upsert bool, mutations []docstore.Mutation) error {
	coll := s.db.Collection(collection)
	if len(mutations) == 0 {
		return s.touch(ctx, coll, id, upsert)
	}
	update, err := mongoUpdate(mutations)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return fmt.Errorf("update document %s/%s: %w", collection, id, err)
	}
	if !upsert && res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	s.log.WithContext(ctx).Debugf("document mutated: collection=%s id=%s mutations=%d", collection, id, len(mutations))
	return nil
}

// touch 处理没有变更的调用：Upsert 保证文档存在，Update 只校验存在性。
func (s *MongoDocumentStore) touch(ctx context.Context, coll *mongo.Collection, id string, upsert bool) error {
	if upsert {
		_, err := coll.InsertOne(ctx, bson.M{"_id": id})
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("upsert document %s/%s: %w", coll.Name(), id, err)
		}
		return nil
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check document %s/%s: %w", coll.Name(), id, err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// mongoUpdate 把变更列表合并为一条更新文档；同一路径出现在不同操作符中视为非法。
func mongoUpdate(mutations []docstore.Mutation) (bson.M, error) {
	ops := map[string]bson.M{}
	owner := map[string]string{}
	put := func(op, path string, value any) error {
		if prev, ok := owner[path]; ok && prev != op {
			return fmt.Errorf("%w: %s used by %s and %s", docstore.ErrInvalidPath, path, prev, op)
		}
		owner[path] = op
		if ops[op] == nil {
			ops[op] = bson.M{}
		}
		ops[op][path] = value
		return nil
	}

	for _, m := range mutations {
		var err error
		switch m.Kind {
		case docstore.KindSet:
			err = put("$set", m.Path, m.Value)
		case docstore.KindIncrement:
			delta := m.Delta
			if existing, ok := ops["$inc"][m.Path].(int64); ok {
				delta += existing
			}
			err = put("$inc", m.Path, delta)
		case docstore.KindSetAdd:
			values := stringsToAny(m.Values)
			if existing, ok := ops["$addToSet"][m.Path].(bson.M); ok {
				values = append(existing["$each"].([]any), values...)
			}
			err = put("$addToSet", m.Path, bson.M{"$each": values})
		case docstore.KindSetRemove:
			values := stringsToAny(m.Values)
			if existing, ok := ops["$pull"][m.Path].(bson.M); ok {
				values = append(existing["$in"].([]any), values...)
			}
			err = put("$pull", m.Path, bson.M{"$in": values})
		case docstore.KindServerTimestamp:
			err = put("$currentDate", m.Path, true)
		default:
			err = fmt.Errorf("%w: unsupported mutation %s", docstore.ErrInvalidPath, m.Kind)
		}
		if err != nil {
			return nil, err
		}
	}

	update := bson.M{}
	for op, fields := range ops {
		update[op] = fields
	}
	return update, nil
}

func mongoFilter(predicates []docstore.Predicate) (bson.D, error) {
	filter := bson.D{}
	for _, p := range predicates {
		switch p.Op {
		case docstore.OpEquals, docstore.OpArrayContains:
			// 数组字段上的等值匹配即为包含匹配。
			filter = append(filter, bson.E{Key: p.Field, Value: bson.M{"$eq": p.Value}})
		case docstore.OpArrayContainsAny:
			filter = append(filter, bson.E{Key: p.Field, Value: bson.M{"$in": p.Values}})
		case docstore.OpRange:
			cond := bson.M{}
			if p.Lower != nil {
				cond["$gte"] = p.Lower
			}
			if p.Upper != nil {
				cond["$lt"] = p.Upper
			}
			filter = append(filter, bson.E{Key: p.Field, Value: cond})
		default:
			return nil, fmt.Errorf("%w: unsupported predicate op %d", docstore.ErrInvalidQuery, p.Op)
		}
	}
	return filter, nil
}

// cursorFilter 返回 $or 分支，匹配排序位置在游标之后的文档（null 在升序最前、降序最后）。
func cursorFilter(order docstore.Order, c docstore.Cursor) bson.A {
	field := order.Field
	cmp, idCmp := "$gt", "$gt"
	if order.Direction == docstore.Desc {
		cmp, idCmp = "$lt", "$lt"
	}
	if c.Value == nil {
		if order.Direction == docstore.Desc {
			return bson.A{bson.M{field: nil, "_id": bson.M{idCmp: c.ID}}}
		}
		return bson.A{
			bson.M{field: bson.M{"$ne": nil}},
			bson.M{field: nil, "_id": bson.M{idCmp: c.ID}},
		}
	}
	branches := bson.A{
		bson.M{field: bson.M{cmp: c.Value}},
		bson.M{field: c.Value, "_id": bson.M{idCmp: c.ID}},
	}
	if order.Direction == docstore.Desc {
		branches = append(branches, bson.M{field: nil})
	}
	return branches
}

func toDocument(raw bson.M) *docstore.Document {
	id := fmt.Sprint(raw["_id"])
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		fields[k] = fromBSON(v)
	}
	return &docstore.Document{ID: id, Fields: docstore.NormalizeFields(fields)}
}

// fromBSON 将驱动解码出的 BSON 类型转换为 docstore 使用的普通 Go 类型。
func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromBSON(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromBSON(item)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromBSON(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromBSON(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case int32:
		return int64(t)
	default:
		return v
	}
}

func stringsToAny(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

var _ docstore.Store = (*MongoDocumentStore)(nil)
