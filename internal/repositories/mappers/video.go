// Package mappers 负责文档（docstore.Document）与持久化对象（po）之间的双向转换。
package mappers

import (
	"strings"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
)

// 视频文档字段名。
const (
	FieldTitle         = "title"
	FieldDescription   = "description"
	FieldThumbnailURL  = "thumbnailUrl"
	FieldViewCount     = "viewCount"
	FieldLikeCount     = "likeCount"
	FieldDislikeCount  = "dislikeCount"
	FieldCategories    = "categories"
	FieldActors        = "actors"
	FieldTags          = "tags"
	FieldTitleLower    = "titleLower"
	FieldCategoryLower = "categoryLower"
	FieldActorLower    = "actorLower"
	FieldTagsLower     = "tagsLower"
	FieldCreatedAt     = "createdAt"
)

// VideoFromDocument 转换视频文档。
func VideoFromDocument(doc *docstore.Document) *po.Video {
	if doc == nil {
		return nil
	}
	return &po.Video{
		ID:            doc.ID,
		Title:         doc.String(FieldTitle),
		Description:   doc.String(FieldDescription),
		ThumbnailURL:  doc.String(FieldThumbnailURL),
		ViewCount:     doc.Int64(FieldViewCount),
		LikeCount:     doc.Int64(FieldLikeCount),
		DislikeCount:  doc.Int64(FieldDislikeCount),
		Categories:    doc.Strings(FieldCategories),
		Actors:        doc.Strings(FieldActors),
		Tags:          doc.Strings(FieldTags),
		TitleLower:    doc.String(FieldTitleLower),
		CategoryLower: doc.String(FieldCategoryLower),
		ActorLower:    doc.String(FieldActorLower),
		TagsLower:     doc.Strings(FieldTagsLower),
		CreatedAt:     doc.Time(FieldCreatedAt),
	}
}

// VideoToFields 构造新视频文档的字段，小写镜像字段由原始字段推导。
func VideoToFields(v *po.Video) map[string]any {
	fields := map[string]any{
		FieldTitle:        v.Title,
		FieldDescription:  v.Description,
		FieldThumbnailURL: v.ThumbnailURL,
		FieldViewCount:    v.ViewCount,
		FieldLikeCount:    v.LikeCount,
		FieldDislikeCount: v.DislikeCount,
		FieldCategories:   nonNil(v.Categories),
		FieldActors:       nonNil(v.Actors),
		FieldTags:         nonNil(v.Tags),
		FieldCreatedAt:    v.CreatedAt.UTC(),
	}
	for k, val := range MirrorFields(v.Title, v.Categories, v.Actors, v.Tags) {
		fields[k] = val
	}
	return fields
}

// MirrorFields 计算小写镜像字段：标题、主分类、主演员与全部标签。
func MirrorFields(title string, categories, actors, tags []string) map[string]any {
	tagsLower := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		lower := strings.ToLower(strings.TrimSpace(tag))
		if lower == "" {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		tagsLower = append(tagsLower, lower)
	}
	return map[string]any{
		FieldTitleLower:    strings.ToLower(strings.TrimSpace(title)),
		FieldCategoryLower: strings.ToLower(strings.TrimSpace(first(categories))),
		FieldActorLower:    strings.ToLower(strings.TrimSpace(first(actors))),
		FieldTagsLower:     tagsLower,
	}
}

func first(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[0]
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return append([]string(nil), items...)
}
