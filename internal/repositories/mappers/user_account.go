package mappers

import (
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
)

// 用户互动集合字段名。
const (
	FieldLikedVideos    = "likedVideos"
	FieldDislikedVideos = "dislikedVideos"
	FieldFavoriteVideos = "favoriteVideos"
)

// UserAccountFromDocument 转换用户文档；文档缺失时返回空集合。
func UserAccountFromDocument(userID string, doc *docstore.Document) *po.UserAccount {
	account := &po.UserAccount{ID: userID}
	if doc == nil {
		return account
	}
	account.LikedVideos = doc.Strings(FieldLikedVideos)
	account.DislikedVideos = doc.Strings(FieldDislikedVideos)
	account.FavoriteVideos = doc.Strings(FieldFavoriteVideos)
	return account
}
