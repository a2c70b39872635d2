package models

import (
	"time"

	"gorm.io/gorm"
)

// 条目类型常量
const (
	EntryTypeIncome  = "income"
	EntryTypeExpense = "expense"
)

// 周期频率常量
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// GetFrequencies 获取所有支持的周期频率
func GetFrequencies() []string {
	return []string{
		FrequencyDaily,
		FrequencyWeekly,
		FrequencyMonthly,
		FrequencyYearly,
	}
}

// EntrySeries 条目系列模型
// 一条系列是一笔收入或支出的唯一定义：Frequency 为空表示单次条目（仅在 StartDate
// 当天发生一次），非空表示按 Frequency/Interval 周期性发生，EndDate 为周期窗口的
// 包含式上界（空表示无限期）。
type EntrySeries struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UserID      uint           `json:"user_id" gorm:"index;not null"`
	EntryType   string         `json:"entry_type" gorm:"size:10;not null;index"` // income/expense
	Title       string         `json:"title" gorm:"size:100;not null"`
	Description string         `json:"description" gorm:"size:255"`
	Amount      float64        `json:"amount" gorm:"type:decimal(10,2);not null"`
	Frequency   *string        `json:"frequency" gorm:"size:10"` // daily/weekly/monthly/yearly，NULL 表示单次
	Interval    int            `json:"interval" gorm:"column:recur_interval;default:1"`
	StartDate   time.Time      `json:"start_date" gorm:"not null;index"`
	EndDate     *time.Time     `json:"end_date"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
	User        User           `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (EntrySeries) TableName() string {
	return "entry_series"
}

// IsRecurring 是否为周期性系列
func (s *EntrySeries) IsRecurring() bool {
	return s.Frequency != nil && *s.Frequency != ""
}
