package po

// EntityKind 区分 categories 与 actors 两类目录实体。
type EntityKind string

const (
	// EntityCategory 分类。
	EntityCategory EntityKind = "category"
	// EntityActor 演员。
	EntityActor EntityKind = "actor"
)

// CatalogEntity 表示分类或演员文档，首次被引用时惰性创建。
type CatalogEntity struct {
	ID         string
	Kind       EntityKind
	Name       string
	VideoCount int64
	ViewCount  int64
	Suggested  bool
}
