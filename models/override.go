package models

import (
	"time"
)

// 例外类型常量
const (
	OverrideKindModified = "modified"
	OverrideKindDeleted  = "deleted"
)

// OccurrenceOverride 单次发生例外记录
// 表示系列排期中某一天被单独编辑或删除，父系列本身不变。同一 (SeriesID,
// OccurrenceDate) 至多存在一条例外。Kind 为 modified 时 Title/Description/Amount
// 替换当天渲染出的发生记录；为 deleted 时当天的发生记录被排除。
// 例外随所属系列删除而级联删除，不使用软删除。
type OccurrenceOverride struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	SeriesID       uint      `json:"series_id" gorm:"uniqueIndex:idx_series_occurrence;not null"`
	OccurrenceDate time.Time `json:"occurrence_date" gorm:"uniqueIndex:idx_series_occurrence;not null"`
	Kind           string    `json:"kind" gorm:"size:10;not null"` // modified/deleted
	Title          string    `json:"title" gorm:"size:100"`
	Description    string    `json:"description" gorm:"size:255"`
	Amount         float64   `json:"amount" gorm:"type:decimal(10,2)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 设置表名
func (OccurrenceOverride) TableName() string {
	return "occurrence_overrides"
}
