package mappers

import (
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
)

// 访客统计字段名。
const (
	FieldMobile     = "mobile"
	FieldPC         = "pc"
	FieldTotal      = "total"
	FieldDeviceType = "deviceType"
	FieldSessionID  = "sessionId"
	FieldPath       = "path"
	FieldTimestamp  = "timestamp"
)

// VisitorAggregateFromDocument 转换访客汇总文档；文档缺失时返回零值。
func VisitorAggregateFromDocument(doc *docstore.Document) *po.VisitorAggregateStats {
	stats := &po.VisitorAggregateStats{}
	if doc == nil {
		return stats
	}
	stats.Mobile = doc.Int64(FieldMobile)
	stats.PC = doc.Int64(FieldPC)
	stats.Total = doc.Int64(FieldTotal)
	stats.LastUpdated = doc.Time(FieldLastUpdated)
	return stats
}

// VisitorDailyRecordToFields 构造访问记录文档字段。
func VisitorDailyRecordToFields(r *po.VisitorDailyRecord) map[string]any {
	return map[string]any{
		FieldDeviceType: string(r.DeviceType),
		FieldSessionID:  r.SessionID,
		FieldPath:       r.Path,
		FieldTimestamp:  r.Timestamp.UTC(),
		FieldDate:       r.Date,
	}
}

// VisitorDailyRecordFromDocument 转换访问记录文档。
func VisitorDailyRecordFromDocument(doc *docstore.Document) *po.VisitorDailyRecord {
	if doc == nil {
		return nil
	}
	return &po.VisitorDailyRecord{
		ID:         doc.ID,
		DeviceType: po.DeviceType(doc.String(FieldDeviceType)),
		SessionID:  doc.String(FieldSessionID),
		Path:       doc.String(FieldPath),
		Timestamp:  doc.Time(FieldTimestamp),
		Date:       doc.String(FieldDate),
	}
}
