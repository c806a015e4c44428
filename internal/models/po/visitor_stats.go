package po

import "time"

// DeviceType 访客设备类型。
type DeviceType string

const (
	// DeviceMobile 移动端。
	DeviceMobile DeviceType = "mobile"
	// DevicePC 桌面端（默认）。
	DevicePC DeviceType = "pc"
)

// VisitorAggregateStats 对应 visitorStats/aggregate 单例文档。
type VisitorAggregateStats struct {
	Mobile      int64
	PC          int64
	Total       int64
	LastUpdated time.Time
}

// VisitorDailyRecord 是 visitorDaily 集合中的只追加访问记录。
type VisitorDailyRecord struct {
	ID         string
	DeviceType DeviceType
	SessionID  string
	Path       string
	Timestamp  time.Time
	Date       string
}
