package api

import (
	"familybudget/database"
	"familybudget/middleware"

	"github.com/gin-gonic/gin"
)

// UpdateHandler 行内编辑处理器
type UpdateHandler struct{}

// NewUpdateHandler 创建行内编辑处理器
func NewUpdateHandler() *UpdateHandler {
	return &UpdateHandler{}
}

// updatableColumns 每张表允许更新的列（服务端封闭枚举）
// 列名只能来自这里，调用方提供的键永远不会进入 SQL 标识符位置
var updatableColumns = map[string]map[string]bool{
	"expenses": {
		"category":     true,
		"amount":       true,
		"date":         true,
		"expense_type": true,
	},
	"budget": {
		"category": true,
		"amount":   true,
	},
}

// UpdateTableRequest 行内编辑请求
type UpdateTableRequest struct {
	Table   string                 `json:"table"`   // expenses 或 budget
	RowID   int64                  `json:"row_id"`  // 目标行ID
	Updates map[string]interface{} `json:"updates"` // 列 -> 新值
}

// UpdateTable 行内编辑
// @Summary 行内编辑消费/预算
// @Description 更新 expenses 或 budget 表中的一行。表名限定在允许列表内，列名限定在各表的服务端枚举内，值全部参数化，WHERE 始终包含本家庭的 family_id。
// @Tags 行内编辑
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateTableRequest true "更新内容"
// @Success 200 {object} map[string]interface{} "更新结果"
// @Router /update_table [post]
func (h *UpdateHandler) UpdateTable(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		c.JSON(200, gin.H{"success": false, "error": "当前会话没有家庭信息"})
		return
	}

	var req UpdateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(200, gin.H{"success": false, "error": "参数错误"})
		return
	}
	if req.Table == "" || req.RowID == 0 || len(req.Updates) == 0 {
		c.JSON(200, gin.H{"success": false, "error": "缺少必要数据"})
		return
	}

	allowed, ok := updatableColumns[req.Table]
	if !ok {
		c.JSON(200, gin.H{"success": false, "error": "无效的表名"})
		return
	}

	// 列名必须全部命中允许列表
	updates := make(map[string]interface{}, len(req.Updates))
	for col, val := range req.Updates {
		if !allowed[col] {
			c.JSON(200, gin.H{"success": false, "error": "不允许更新的列: " + col})
			return
		}
		updates[col] = val
	}

	if err := database.DB.Table(req.Table).
		Where("id = ? AND family_id = ?", req.RowID, *familyID).
		Updates(updates).Error; err != nil {
		c.JSON(200, gin.H{"success": false, "error": SafeErrorMessage(err, "更新失败")})
		return
	}

	c.JSON(200, gin.H{"success": true})
}
