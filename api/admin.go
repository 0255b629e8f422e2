package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strconv"

	"familybudget/config"
	"familybudget/database"
	"familybudget/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// AdminHandler 后台管理处理器，所有接口不做租户过滤
type AdminHandler struct{}

// NewAdminHandler 创建后台管理处理器
func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

// AdminUserRow 后台用户视图
type AdminUserRow struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	FamilyID *int64 `json:"family_id"`
}

// Dashboard 后台总览
// @Summary 后台总览
// @Description 返回全部家庭ID与全部用户，家庭按ID升序，用户按用户名升序
// @Tags 后台管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "获取成功"
// @Failure 403 {object} Response "仅管理员可访问"
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	families, err := distinctFamilyIDs()
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询家庭列表失败"))
		return
	}

	var users []AdminUserRow
	if err := database.DB.Model(&models.User{}).
		Select("id, username, role, family_id").
		Order("username ASC").
		Scan(&users).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询用户列表失败"))
		return
	}

	Success(c, gin.H{
		"families": families,
		"users":    users,
	})
}

// AdminMemberRow 后台家庭成员视图
type AdminMemberRow struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// FamilyMembers 查看指定家庭的成员
// @Summary 查看指定家庭的成员
// @Tags 后台管理
// @Produce json
// @Security BearerAuth
// @Param family_id path int true "家庭ID"
// @Success 200 {object} Response "获取成功"
// @Failure 400 {object} Response "无效的家庭ID"
// @Router /admin/family_members/{family_id} [get]
func (h *AdminHandler) FamilyMembers(c *gin.Context) {
	familyID, err := strconv.ParseInt(c.Param("family_id"), 10, 64)
	if err != nil {
		BadRequest(c, "无效的家庭ID")
		return
	}

	var members []AdminMemberRow
	if err := database.DB.Model(&models.User{}).
		Select("id, username, role").
		Where("family_id = ?", familyID).
		Order("username ASC").
		Scan(&members).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, gin.H{"members": members})
}

// AdminExpenseRow 后台家庭消费视图
type AdminExpenseRow struct {
	ID          uint    `json:"id"`
	Username    string  `json:"username"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Date        *string `json:"date"`
	ExpenseType *string `json:"expense_type"`
}

// FamilyExpenses 查看指定家庭的消费
// @Summary 查看指定家庭的消费
// @Description 联表取消费人用户名，按日期降序
// @Tags 后台管理
// @Produce json
// @Security BearerAuth
// @Param family_id path int true "家庭ID"
// @Success 200 {object} Response "获取成功"
// @Failure 400 {object} Response "无效的家庭ID"
// @Router /admin/family_expenses/{family_id} [get]
func (h *AdminHandler) FamilyExpenses(c *gin.Context) {
	familyID, err := strconv.ParseInt(c.Param("family_id"), 10, 64)
	if err != nil {
		BadRequest(c, "无效的家庭ID")
		return
	}

	var expenses []AdminExpenseRow
	if err := database.DB.Model(&models.Expense{}).
		Select("expenses.id, users.username, expenses.category, expenses.amount, expenses.date, expenses.expense_type").
		Joins("JOIN users ON expenses.user_id = users.id").
		Where("expenses.family_id = ?", familyID).
		Order("expenses.date DESC").
		Scan(&expenses).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, gin.H{"family_id": familyID, "expenses": expenses})
}

// exportHeader 批量导出的固定表头
var exportHeader = []string{"Family ID", "Username", "Category", "Amount", "Date", "Expense Type"}

// exportRow 单条导出行，文本列已在 SQL 中做过 NULL 安全转换（缺失值为字面量 NULL）
type exportRow struct {
	FamilyID    int64  `gorm:"column:family_id"`
	Username    string `gorm:"column:username"`
	Category    string `gorm:"column:category"`
	Amount      string `gorm:"column:amount"`
	Date        string `gorm:"column:date"`
	ExpenseType string `gorm:"column:expense_type"`
}

// distinctFamilyIDs 全部非空家庭ID，升序
func distinctFamilyIDs() ([]int64, error) {
	var ids []int64
	err := database.DB.Model(&models.User{}).
		Distinct("family_id").
		Where("family_id IS NOT NULL").
		Order("family_id ASC").
		Pluck("family_id", &ids).Error
	return ids, err
}

// fetchFamilyExportRows 取一个家庭的全部消费导出行
// 文本/金额/日期的缺失值在 SQL 层统一转换为字面量 'NULL'，日期格式 YYYY-MM-DD
func fetchFamilyExportRows(ctx context.Context, familyID int64) ([]exportRow, error) {
	var rows []exportRow
	err := database.DB.WithContext(ctx).Raw(`
		SELECT u.family_id, u.username,
		       COALESCE(NULLIF(e.category, ''), 'NULL') AS category,
		       COALESCE(CAST(e.amount AS CHAR), 'NULL') AS amount,
		       COALESCE(DATE_FORMAT(e.date, '%Y-%m-%d'), 'NULL') AS date,
		       COALESCE(e.expense_type, 'NULL') AS expense_type
		FROM expenses e
		JOIN users u ON e.user_id = u.id
		WHERE u.family_id = ?`, familyID).
		Scan(&rows).Error
	return rows, err
}

// collectAllExportRows 并发抓取所有家庭的导出行并做确定性排序
// 每个家庭一个任务，经由受限并发的任务组执行；任一家庭失败则整体失败（全有或全无），
// 错误信息带上失败家庭的ID。排序键为 (family_id 升序, date 升序)，缺失日期排最前。
func collectAllExportRows(ctx context.Context) ([]exportRow, error) {
	familyIDs, err := distinctFamilyIDs()
	if err != nil {
		return nil, fmt.Errorf("查询家庭列表失败: %w", err)
	}
	if len(familyIDs) == 0 {
		return nil, nil
	}

	results := make([][]exportRow, len(familyIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.GOMAXPROCS(0), len(familyIDs)))
	for i, familyID := range familyIDs {
		i, familyID := i, familyID
		g.Go(func() error {
			rows, err := fetchFamilyExportRows(gctx, familyID)
			if err != nil {
				return fmt.Errorf("家庭 %d 导出失败: %w", familyID, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []exportRow
	for _, rows := range results {
		all = append(all, rows...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].FamilyID != all[j].FamilyID {
			return all[i].FamilyID < all[j].FamilyID
		}
		return exportDateKey(all[i].Date) < exportDateKey(all[j].Date)
	})
	return all, nil
}

// exportDateKey 缺失日期（字面量 NULL）按空串处理，排在所有真实日期之前
func exportDateKey(date string) string {
	if date == "NULL" {
		return ""
	}
	return date
}

// ExportAllCSV 导出全部家庭的消费为 CSV
// @Summary 导出全部消费（CSV）
// @Description 并发抓取每个家庭的消费并合并导出。缺失值渲染为字面量 NULL，日期为 YYYY-MM-DD，行按 (家庭ID, 日期) 升序。任一家庭查询失败则整个导出失败。
// @Tags 后台管理
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file "CSV 文件"
// @Failure 403 {object} Response "仅管理员可访问"
// @Failure 500 {object} Response "导出失败"
// @Router /admin/export_all_csv [get]
func (h *AdminHandler) ExportAllCSV(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.GetConfig().Export.Timeout)
	defer cancel()

	rows, err := collectAllExportRows(ctx)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "导出失败"))
		return
	}

	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)
	if err := writer.Write(exportHeader); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.FamilyID, 10),
			row.Username,
			row.Category,
			row.Amount,
			row.Date,
			row.ExpenseType,
		}
		if err := writer.Write(record); err != nil {
			InternalError(c, "生成 CSV 失败")
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=all_expenses.csv")
	c.Header("Content-Length", strconv.Itoa(buf.Len()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportAllExcel 导出全部家庭的消费为 Excel
// @Summary 导出全部消费（Excel）
// @Description 与 CSV 导出相同的行集，输出为带样式表头的 xlsx 工作表
// @Tags 后台管理
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "Excel 文件"
// @Failure 403 {object} Response "仅管理员可访问"
// @Failure 500 {object} Response "导出失败"
// @Router /admin/export_all_excel [get]
func (h *AdminHandler) ExportAllExcel(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.GetConfig().Export.Timeout)
	defer cancel()

	rows, err := collectAllExportRows(ctx)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "导出失败"))
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "全部消费记录"
	f.SetSheetName("Sheet1", sheetName)

	// 表头样式
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	header := make([]interface{}, len(exportHeader))
	for i, name := range exportHeader {
		header[i] = name
	}
	_ = f.SetSheetRow(sheetName, "A1", &header)
	_ = f.SetCellStyle(sheetName, "A1", "F1", headerStyle)
	_ = f.SetColWidth(sheetName, "A", "F", 16)

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		_ = f.SetSheetRow(sheetName, cell, &[]interface{}{
			row.FamilyID,
			row.Username,
			row.Category,
			row.Amount,
			row.Date,
			row.ExpenseType,
		})
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=all_expenses.xlsx")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
