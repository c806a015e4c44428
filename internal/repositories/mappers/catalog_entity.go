package mappers

import (
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
)

// 分类 / 演员文档字段名。
const (
	FieldName       = "name"
	FieldVideoCount = "videoCount"
	FieldSuggested  = "suggested"
)

// CatalogEntityFromDocument 转换分类或演员文档。
func CatalogEntityFromDocument(kind po.EntityKind, doc *docstore.Document) *po.CatalogEntity {
	if doc == nil {
		return nil
	}
	return &po.CatalogEntity{
		ID:         doc.ID,
		Kind:       kind,
		Name:       doc.String(FieldName),
		VideoCount: doc.Int64(FieldVideoCount),
		ViewCount:  doc.Int64(FieldViewCount),
		Suggested:  doc.Bool(FieldSuggested),
	}
}
