package models

import (
	"time"
)

// Expense 消费记录模型
// family_id 是所属用户租户键的冗余副本，所有按家庭读取/删除都直接以它过滤
type Expense struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UserID      int64      `json:"user_id" gorm:"index;not null"`
	FamilyID    int64      `json:"family_id" gorm:"index;not null"`
	Category    string     `json:"category" gorm:"size:50;not null"`
	Amount      float64    `json:"amount" gorm:"type:decimal(10,2);not null"`
	Date        *time.Time `json:"date" gorm:"type:date"`
	ExpenseType *string    `json:"expense_type" gorm:"size:50"`
	AddedBy     *int64     `json:"added_by" gorm:"index"` // 录入人，可能不同于消费人
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName 设置表名
func (Expense) TableName() string {
	return "expenses"
}
