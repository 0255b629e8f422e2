package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"familybudget/database"
	"familybudget/middleware"
	"familybudget/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ExpenseHandler 消费记录处理器
type ExpenseHandler struct{}

// NewExpenseHandler 创建消费记录处理器
func NewExpenseHandler() *ExpenseHandler {
	return &ExpenseHandler{}
}

// AddExpenseRequest 家长录入消费请求，四个字段全部必填
type AddExpenseRequest struct {
	Category    string  `json:"category" binding:"required" example:"Food"`
	Amount      float64 `json:"amount" binding:"required,gt=0" example:"12.50"`
	Date        string  `json:"date" binding:"required" example:"2024-01-01"`
	ExpenseType string  `json:"expense_type" binding:"required" example:"grocery"`
}

// SubmitExpenseRequest 家庭成员提交消费请求，expense_type 可选
type SubmitExpenseRequest struct {
	Category    string  `json:"category" binding:"required" example:"Food"`
	Amount      float64 `json:"amount" binding:"required,gt=0" example:"5.00"`
	Date        string  `json:"date" binding:"required" example:"2024-01-02"`
	ExpenseType string  `json:"expense_type" example:"snack"`
}

// parseExpenseDate 解析 YYYY-MM-DD 格式的消费日期
func parseExpenseDate(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, time.Local)
}

// AddExpenseForm 录入消费表单元数据（仅家长）
// @Summary 获取录入消费表单信息
// @Description 返回本家庭已有的消费类别，供表单下拉使用；类别为自由文本，允许新类别
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "获取成功"
// @Router /add_expense [get]
func (h *ExpenseHandler) AddExpenseForm(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}
	categories, err := distinctExpenseCategories(*familyID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, gin.H{"categories": categories})
}

// AddExpense 家长录入消费
// @Summary 录入消费记录（家长）
// @Description 以当前家长身份录入一条消费，记录人(added_by)为家长本人
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AddExpenseRequest true "消费信息"
// @Success 200 {object} Response{data=models.Expense} "录入成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 403 {object} Response "权限不足"
// @Router /add_expense [post]
func (h *ExpenseHandler) AddExpense(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	var req AddExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "所有字段均为必填: "+err.Error())
		return
	}

	date, err := parseExpenseDate(req.Date)
	if err != nil {
		BadRequest(c, "日期格式错误，应为: 2006-01-02")
		return
	}

	expense := models.Expense{
		UserID:      userID,
		FamilyID:    *familyID,
		Category:    req.Category,
		Amount:      req.Amount,
		Date:        &date,
		ExpenseType: &req.ExpenseType,
		AddedBy:     &userID,
	}

	if err := database.DB.Create(&expense).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "录入消费记录失败"))
		return
	}

	SuccessWithMessage(c, "已添加消费记录", expense)
}

// SubmitExpenseForm 提交消费表单元数据
// @Summary 获取提交消费表单信息
// @Description 返回本家庭预算中已有的类别，供孩子提交消费时选择
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "获取成功"
// @Router /submit_expense [get]
func (h *ExpenseHandler) SubmitExpenseForm(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	var categories []string
	if err := database.DB.Model(&models.Budget{}).
		Distinct("category").
		Where("family_id = ?", *familyID).
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, gin.H{"categories": categories})
}

// SubmitExpense 家庭成员提交消费
// @Summary 提交消费记录
// @Description 任意已登录的家庭成员都可提交消费，记录人(added_by)为提交者本人
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubmitExpenseRequest true "消费信息"
// @Success 200 {object} Response{data=models.Expense} "提交成功"
// @Failure 400 {object} Response "缺少必填字段"
// @Router /submit_expense [post]
func (h *ExpenseHandler) SubmitExpense(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "缺少必填字段: "+err.Error())
		return
	}

	date, err := parseExpenseDate(req.Date)
	if err != nil {
		BadRequest(c, "日期格式错误，应为: 2006-01-02")
		return
	}

	expense := models.Expense{
		UserID:   userID,
		FamilyID: *familyID,
		Category: req.Category,
		Amount:   req.Amount,
		Date:     &date,
		AddedBy:  &userID,
	}
	if req.ExpenseType != "" {
		expense.ExpenseType = &req.ExpenseType
	}

	if err := database.DB.Create(&expense).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "提交消费记录失败"))
		return
	}

	SuccessWithMessage(c, "消费已提交", expense)
}

// distinctExpenseCategories 本家庭消费记录中出现过的类别，按名称升序
func distinctExpenseCategories(familyID int64) ([]string, error) {
	var categories []string
	err := database.DB.Model(&models.Expense{}).
		Distinct("category").
		Where("family_id = ?", familyID).
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}

// OpenExpenses 消费总览（类别列表）
// @Summary 查看消费类别
// @Description 列出本家庭消费记录中出现过的全部类别
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "获取成功"
// @Router /open_expenses [get]
func (h *ExpenseHandler) OpenExpenses(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}
	categories, err := distinctExpenseCategories(*familyID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, gin.H{"categories": categories})
}

// ViewCategoryExpensesRequest 按类别查看消费请求
type ViewCategoryExpensesRequest struct {
	Category string `json:"category"`
}

// CategoryExpenseRow 类别明细行
type CategoryExpenseRow struct {
	ID          uint       `json:"id"`
	Date        *time.Time `json:"date"`
	ExpenseType *string    `json:"expense_type"`
	Amount      float64    `json:"amount"`
}

// ViewCategoryExpenses 按类别查看本家庭消费明细
// @Summary 按类别查看消费明细
// @Description 返回本家庭指定类别的消费行，按日期升序；响应为表格结构（列名 + 行数据）
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ViewCategoryExpensesRequest true "类别"
// @Success 200 {object} map[string]interface{} "表格数据"
// @Router /view_category_expenses [post]
func (h *ExpenseHandler) ViewCategoryExpenses(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		c.JSON(200, gin.H{"success": false, "error": "当前会话没有家庭信息"})
		return
	}

	var req ViewCategoryExpensesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Category == "" {
		c.JSON(200, gin.H{"success": false, "error": "缺少类别参数"})
		return
	}

	var rows []CategoryExpenseRow
	if err := database.DB.Model(&models.Expense{}).
		Select("id, date, expense_type, amount").
		Where("family_id = ? AND category = ?", *familyID, req.Category).
		Order("date ASC").
		Scan(&rows).Error; err != nil {
		c.JSON(200, gin.H{"success": false, "error": SafeErrorMessage(err, "查询失败")})
		return
	}

	c.JSON(200, gin.H{
		"success":      true,
		"column_names": []string{"id", "date", "expense_type", "amount"},
		"table_data":   rows,
	})
}

// ChildExpenseRow 他人录入的消费行（含录入人用户名）
type ChildExpenseRow struct {
	ID          uint       `json:"id"`
	Category    string     `json:"category"`
	Amount      float64    `json:"amount"`
	ExpenseType *string    `json:"expense_type"`
	Date        *time.Time `json:"date"`
	AddedBy     string     `json:"added_by"`
}

// ViewChildExpenses 查看本家庭其他成员录入的消费
// @Summary 查看其他成员的消费
// @Description 返回本家庭中由其他成员（added_by 不是本人）录入的消费，联表取录入人用户名，按日期降序
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "表格数据"
// @Router /view_child_expenses [post]
func (h *ExpenseHandler) ViewChildExpenses(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil || userID == 0 {
		c.JSON(200, gin.H{"success": false, "error": "会话缺少家庭或用户信息"})
		return
	}

	var rows []ChildExpenseRow
	if err := database.DB.Model(&models.Expense{}).
		Select("expenses.id, expenses.category, expenses.amount, expenses.expense_type, expenses.date, users.username AS added_by").
		Joins("JOIN users ON expenses.added_by = users.id").
		Where("expenses.family_id = ? AND expenses.added_by != ?", *familyID, userID).
		Order("expenses.date DESC").
		Scan(&rows).Error; err != nil {
		c.JSON(200, gin.H{"success": false, "error": SafeErrorMessage(err, "查询失败")})
		return
	}

	c.JSON(200, gin.H{
		"success":      true,
		"column_names": []string{"id", "category", "amount", "expense_type", "date", "added_by"},
		"table_data":   rows,
	})
}

// DeleteExpenseRequest 删除消费请求
type DeleteExpenseRequest struct {
	ID int64 `json:"id"`
}

// DeleteExpense 删除消费记录（仅家长）
// @Summary 删除消费记录
// @Description 按ID删除本家庭的消费记录；无匹配行时同样返回成功（幂等删除）
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeleteExpenseRequest true "消费记录ID"
// @Success 200 {object} map[string]interface{} "删除结果"
// @Router /delete_expense [post]
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		c.JSON(200, gin.H{"success": false, "error": "当前会话没有家庭信息"})
		return
	}

	var req DeleteExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == 0 {
		c.JSON(200, gin.H{"success": false, "error": "缺少消费记录ID"})
		return
	}

	if err := database.DB.Where("id = ? AND family_id = ?", req.ID, *familyID).
		Delete(&models.Expense{}).Error; err != nil {
		c.JSON(200, gin.H{"success": false, "error": SafeErrorMessage(err, "删除失败")})
		return
	}

	c.JSON(200, gin.H{"success": true})
}

// csvImportColumns CSV 导入要求的表头列
var csvImportColumns = []string{"category", "amount", "date", "expense_type"}

// OpenFileForm CSV 导入说明
// @Summary 获取 CSV 导入格式说明
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "获取成功"
// @Router /open_file [get]
func (h *ExpenseHandler) OpenFileForm(c *gin.Context) {
	Success(c, gin.H{
		"columns":     csvImportColumns,
		"date_format": "2006-01-02",
	})
}

// OpenFile CSV 批量导入消费（仅家长）
// @Summary CSV 批量导入消费
// @Description 上传 CSV 文件（表头 category,amount,date,expense_type），每行生成一条归属上传家长的消费。整个导入在一个事务中执行，任一行非法则全部回滚。
// @Tags 消费记录
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV 文件"
// @Success 200 {object} Response "导入成功"
// @Failure 400 {object} Response "文件格式错误或存在非法行"
// @Router /open_file [post]
func (h *ExpenseHandler) OpenFile(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil || !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		BadRequest(c, "文件格式无效，请上传 CSV 文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "无法读取上传文件")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		BadRequest(c, "CSV 文件为空或表头无效")
		return
	}

	// 按表头定位各列，列序不限
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, col := range csvImportColumns {
		if _, ok := colIndex[col]; !ok {
			BadRequest(c, "CSV 缺少必需列: "+col)
			return
		}
	}

	// 整个导入在一个事务中执行，任一行失败则全部回滚
	imported := 0
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		line := 1
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("第 %d 行读取失败: %w", line+1, err)
			}
			line++

			amount, err := strconv.ParseFloat(strings.TrimSpace(record[colIndex["amount"]]), 64)
			if err != nil {
				return fmt.Errorf("第 %d 行金额无效: %w", line, err)
			}
			date, err := parseExpenseDate(strings.TrimSpace(record[colIndex["date"]]))
			if err != nil {
				return fmt.Errorf("第 %d 行日期无效: %w", line, err)
			}
			expenseType := strings.TrimSpace(record[colIndex["expense_type"]])

			expense := models.Expense{
				UserID:   userID,
				FamilyID: *familyID,
				Category: strings.TrimSpace(record[colIndex["category"]]),
				Amount:   amount,
				Date:     &date,
				AddedBy:  &userID,
			}
			if expenseType != "" {
				expense.ExpenseType = &expenseType
			}
			if err := tx.Create(&expense).Error; err != nil {
				return fmt.Errorf("第 %d 行写入失败: %w", line, err)
			}
			imported++
		}
	})
	if err != nil {
		BadRequest(c, "处理文件失败: "+SafeErrorMessage(err, "存在非法数据行"))
		return
	}

	SuccessWithMessage(c, "文件上传成功，消费记录已保存", gin.H{"imported": imported})
}
