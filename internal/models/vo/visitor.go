package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
)

// VisitResult 描述一次访问是否被计入统计。
//
// Reason 取值：counted / admin_path / within_window。
type VisitResult struct {
	DeviceType po.DeviceType `json:"device_type"`
	Counted    bool          `json:"counted"`
	Reason     string        `json:"reason"`
	SessionID  string        `json:"session_id,omitempty"`
	RecordID   string        `json:"record_id,omitempty"`
}

// VisitorStats 是访客汇总与当日记录数。
type VisitorStats struct {
	Mobile      int64     `json:"mobile"`
	PC          int64     `json:"pc"`
	Total       int64     `json:"total"`
	Today       int64     `json:"today"`
	Date        string    `json:"date"`
	LastUpdated time.Time `json:"last_updated"`
}
