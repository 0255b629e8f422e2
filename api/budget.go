package api

import (
	"familybudget/database"
	"familybudget/middleware"
	"familybudget/models"

	"github.com/gin-gonic/gin"
)

// BudgetHandler 预算处理器
type BudgetHandler struct{}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler() *BudgetHandler {
	return &BudgetHandler{}
}

// CreateBudgetRequest 新建预算类别请求
type CreateBudgetRequest struct {
	Category string  `json:"category" binding:"required" example:"Food"`
	Budget   float64 `json:"budget" binding:"required,gt=0" example:"300.00"`
}

// DeleteBudgetRequest 删除预算类别请求
type DeleteBudgetRequest struct {
	Category string `json:"category" binding:"required" example:"Food"`
}

// budgetCategories 本家庭预算类别，按名称升序
func budgetCategories(familyID int64) ([]string, error) {
	var categories []string
	err := database.DB.Model(&models.Budget{}).
		Select("category").
		Where("family_id = ?", familyID).
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}

// OpenBudget 查看本家庭预算
// @Summary 查看预算
// @Description 列出本家庭全部预算行，按类别升序
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Budget} "获取成功"
// @Router /open_budget [get]
func (h *BudgetHandler) OpenBudget(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	var budgets []models.Budget
	if err := database.DB.Where("family_id = ?", *familyID).
		Order("category ASC").
		Find(&budgets).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, budgets)
}

// CreateTableForm 新建预算表单元数据（仅家长）
// @Summary 获取新建预算表单信息
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "获取成功"
// @Router /create_table [get]
func (h *BudgetHandler) CreateTableForm(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}
	categories, err := budgetCategories(*familyID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, gin.H{"categories": categories})
}

// CreateTable 新建预算类别（仅家长）
// @Summary 新建预算类别
// @Description 为本家庭新增一个类别的消费上限。类别按原样存储，不做大小写或空白归一。
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBudgetRequest true "预算信息"
// @Success 200 {object} Response{data=models.Budget} "创建成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 403 {object} Response "权限不足"
// @Router /create_table [post]
func (h *BudgetHandler) CreateTable(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	budget := models.Budget{
		FamilyID: *familyID,
		Category: req.Category,
		Amount:   req.Budget,
	}
	if err := database.DB.Create(&budget).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建预算失败"))
		return
	}

	SuccessWithMessage(c, "预算类别已创建", budget)
}

// DeleteTableForm 删除预算表单元数据（仅家长）
// @Summary 获取可删除的预算类别列表
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "获取成功"
// @Router /delete_table [get]
func (h *BudgetHandler) DeleteTableForm(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}
	categories, err := budgetCategories(*familyID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, gin.H{"categories": categories})
}

// DeleteTable 删除预算类别（仅家长）
// @Summary 删除预算类别
// @Description 删除本家庭指定类别的预算行，并返回删除后的类别列表；无匹配行时同样返回成功
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeleteBudgetRequest true "类别"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "参数错误"
// @Router /delete_table [post]
func (h *BudgetHandler) DeleteTable(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	var req DeleteBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := database.DB.Where("family_id = ? AND category = ?", *familyID, req.Category).
		Delete(&models.Budget{}).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除预算失败"))
		return
	}

	// 返回删除后的类别列表，供页面刷新
	categories, err := budgetCategories(*familyID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	SuccessWithMessage(c, "类别 '"+req.Category+"' 已删除", gin.H{"categories": categories})
}

// BudgetRow 预算同步行
type BudgetRow struct {
	ID       uint    `json:"id"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// SyncBudget 同步预算表格
// @Summary 同步预算表格
// @Description 返回本家庭预算的表格结构（列名 + 行数据），按类别升序
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "表格数据"
// @Router /sync_budget [post]
func (h *BudgetHandler) SyncBudget(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		c.JSON(200, gin.H{"success": false, "error": "当前会话没有家庭信息"})
		return
	}

	var rows []BudgetRow
	if err := database.DB.Model(&models.Budget{}).
		Select("id, category, amount").
		Where("family_id = ?", *familyID).
		Order("category ASC").
		Scan(&rows).Error; err != nil {
		c.JSON(200, gin.H{"success": false, "error": SafeErrorMessage(err, "查询失败")})
		return
	}

	c.JSON(200, gin.H{
		"success":      true,
		"column_names": []string{"id", "category", "amount"},
		"table_data":   rows,
	})
}
