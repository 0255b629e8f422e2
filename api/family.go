package api

import (
	"familybudget/database"
	"familybudget/middleware"
	"familybudget/models"

	"github.com/gin-gonic/gin"
)

// FamilyHandler 家庭成员管理处理器
type FamilyHandler struct{}

// NewFamilyHandler 创建家庭成员管理处理器
func NewFamilyHandler() *FamilyHandler {
	return &FamilyHandler{}
}

// FamilyMember 家庭成员视图
type FamilyMember struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// listFamilyMembers 按用户名升序列出指定家庭的成员
func listFamilyMembers(familyID int64) ([]FamilyMember, error) {
	var members []FamilyMember
	err := database.DB.Model(&models.User{}).
		Select("username, role").
		Where("family_id = ?", familyID).
		Order("username ASC").
		Scan(&members).Error
	return members, err
}

// Accounts 查看本家庭全部成员
// @Summary 查看家庭成员
// @Description 列出与当前用户同家庭的全部成员，按用户名升序
// @Tags 家庭
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]FamilyMember} "获取成功"
// @Failure 401 {object} Response "未登录"
// @Router /accounts [get]
func (h *FamilyHandler) Accounts(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	members, err := listFamilyMembers(*familyID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, members)
}

// EditAccounts 成员管理视图（仅家长）
// @Summary 成员管理列表
// @Description 与 /accounts 相同的成员列表，供家长的管理页使用
// @Tags 家庭
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]FamilyMember} "获取成功"
// @Failure 403 {object} Response "权限不足"
// @Router /edit_accounts [get]
func (h *FamilyHandler) EditAccounts(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}

	members, err := listFamilyMembers(*familyID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, members)
}

// DeleteUser 删除家庭成员（仅家长）
// @Summary 删除家庭成员
// @Description 删除本家庭内的孩子账号。目标必须存在且与调用者同家庭；家长账号不可被删除。
// @Tags 家庭
// @Produce json
// @Security BearerAuth
// @Param username path string true "目标用户名"
// @Success 200 {object} Response "删除成功"
// @Failure 403 {object} Response "不能删除家长账号"
// @Failure 404 {object} Response "用户不存在或不在您的家庭中"
// @Router /delete_user/{username} [post]
func (h *FamilyHandler) DeleteUser(c *gin.Context) {
	familyID := middleware.GetCurrentFamilyID(c)
	if familyID == nil {
		BadRequest(c, "当前会话没有家庭信息")
		return
	}
	username := c.Param("username")

	// 目标必须在调用者自己的家庭中
	var target models.User
	if err := database.DB.Where("username = ? AND family_id = ?", username, *familyID).First(&target).Error; err != nil {
		NotFound(c, "用户不存在或不在您的家庭中")
		return
	}

	// 家长账号不可删除，防止家长互删导致家庭失管
	if target.Role == models.RoleParent {
		Forbidden(c, "不能删除家长账号")
		return
	}

	if err := database.DB.Where("username = ? AND family_id = ?", username, *familyID).Delete(&models.User{}).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}

	SuccessWithMessage(c, "已删除用户: "+username, nil)
}
