package models

import (
	"time"
)

// StartingBalance 起始余额模型
// 每个用户同一时间只有一条生效的起始余额，upsert 直接替换旧值。
type StartingBalance struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	EffectiveDate time.Time `json:"effective_date" gorm:"not null"`
	Amount        float64   `json:"amount" gorm:"type:decimal(10,2);not null"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 设置表名
func (StartingBalance) TableName() string {
	return "starting_balances"
}
