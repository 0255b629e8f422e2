package models

import (
	"time"
)

// Budget 按类别的家庭消费上限
// 类别按原样比较（区分大小写与空白），同一 (family_id, category) 理论上只应有一条生效记录
type Budget struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	FamilyID  int64     `json:"family_id" gorm:"index;not null"`
	Category  string    `json:"category" gorm:"size:50;not null"`
	Amount    float64   `json:"amount" gorm:"type:decimal(10,2);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 设置表名
func (Budget) TableName() string {
	return "budget"
}
