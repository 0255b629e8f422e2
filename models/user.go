package models

import (
	"time"
)

const (
	// RoleParent 家长：可管理家庭成员、预算与消费记录
	RoleParent = "parent"
	// RoleChild 孩子：只能提交和查看本家庭的消费
	RoleChild = "child"
	// RoleAdmin 全局管理员：凭据来自配置，不对应 users 表记录
	RoleAdmin = "admin"
)

// AdminUserID 全局管理员的哨兵用户ID，不会出现在 users 表中
const AdminUserID int64 = -1

// User 用户模型，family_id 为家庭租户键；全局管理员无对应记录
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Password  string    `json:"-" gorm:"size:255;not null"`
	Role      string    `json:"role" gorm:"size:20;not null;index"` // parent/child
	FamilyID  *int64    `json:"family_id" gorm:"index"`             // 管理员为 NULL，普通用户必填
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}
