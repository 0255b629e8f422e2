package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"familybudget/middleware"
	"familybudget/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyHandler_Accounts(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 只返回本家庭的成员
	mock.ExpectQuery("SELECT username, role FROM `users`").
		WithArgs(int64(1234)).
		WillReturnRows(sqlmock.NewRows([]string{"username", "role"}).
			AddRow("alice", "parent").
			AddRow("bob", "child"))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setPrincipalMiddleware(1, "alice", models.RoleParent, int64Ptr(1234)))
	h := NewFamilyHandler()
	router.GET("/accounts", h.Accounts)

	req := httptest.NewRequest("GET", "/accounts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	members := resp["data"].([]interface{})
	require.Len(t, members, 2)
	first := members[0].(map[string]interface{})
	assert.Equal(t, "alice", first["username"])
	assert.Equal(t, "parent", first["role"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyHandler_Accounts_NoFamily(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	router := gin.New()
	router.Use(setPrincipalMiddleware(models.AdminUserID, "admin", models.RoleAdmin, nil))
	h := NewFamilyHandler()
	router.GET("/accounts", h.Accounts)

	req := httptest.NewRequest("GET", "/accounts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "当前会话没有家庭信息")
}

func TestFamilyHandler_DeleteUser(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 目标是本家庭的孩子：先查后删
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("bob", int64(1234)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "role", "family_id", "created_at", "updated_at"}).
			AddRow(2, "bob", "hash", "child", 1234, time.Now(), time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `users`").
		WithArgs("bob", int64(1234)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	router := gin.New()
	router.Use(setPrincipalMiddleware(1, "alice", models.RoleParent, int64Ptr(1234)))
	h := NewFamilyHandler()
	router.POST("/delete_user/:username", h.DeleteUser)

	req := httptest.NewRequest("POST", "/delete_user/bob", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "已删除用户: bob")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyHandler_DeleteUser_ParentProtected(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 目标是家长：查到但拒绝删除
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("alice", int64(1234)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "role", "family_id", "created_at", "updated_at"}).
			AddRow(1, "alice", "hash", "parent", 1234, time.Now(), time.Now()))

	router := gin.New()
	router.Use(setPrincipalMiddleware(3, "carol", models.RoleParent, int64Ptr(1234)))
	h := NewFamilyHandler()
	router.POST("/delete_user/:username", h.DeleteUser)

	req := httptest.NewRequest("POST", "/delete_user/alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 403, w.Code)
	assert.Contains(t, w.Body.String(), "不能删除家长账号")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyHandler_DeleteUser_OtherFamily(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 目标在别的家庭：按 (username, family_id) 查不到
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("eve", int64(1234)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	router := gin.New()
	router.Use(setPrincipalMiddleware(1, "alice", models.RoleParent, int64Ptr(1234)))
	h := NewFamilyHandler()
	router.POST("/delete_user/:username", h.DeleteUser)

	req := httptest.NewRequest("POST", "/delete_user/eve", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
	assert.Contains(t, w.Body.String(), "用户不存在或不在您的家庭中")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyHandler_DeleteUser_ChildBlockedByRole(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	// 孩子走不进仅家长的路由
	router := gin.New()
	router.Use(setPrincipalMiddleware(2, "bob", models.RoleChild, int64Ptr(1234)))
	router.Use(middleware.RoleRequired(models.RoleParent))
	h := NewFamilyHandler()
	router.POST("/delete_user/:username", h.DeleteUser)

	req := httptest.NewRequest("POST", "/delete_user/alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 403, w.Code)
	assert.Contains(t, w.Body.String(), "权限不足")
}
