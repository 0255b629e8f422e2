package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"familybudget/config"
	"familybudget/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminRouter() (*gin.Engine, *AdminHandler) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setPrincipalMiddleware(models.AdminUserID, "admin", models.RoleAdmin, nil))
	return router, NewAdminHandler()
}

func TestAdminHandler_Dashboard(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT DISTINCT `family_id` FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"family_id"}).
			AddRow(1001).
			AddRow(1002))

	mock.ExpectQuery("SELECT id, username, role, family_id FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "family_id"}).
			AddRow(1, "alice", "parent", 1001).
			AddRow(2, "bob", "child", 1001).
			AddRow(3, "carol", "parent", 1002))

	router, h := newAdminRouter()
	router.GET("/admin/dashboard", h.Dashboard)

	req := httptest.NewRequest("GET", "/admin/dashboard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Len(t, data["families"], 2)
	assert.Len(t, data["users"], 3)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandler_FamilyMembers(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, username, role FROM `users`").
		WithArgs(int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role"}).
			AddRow(1, "alice", "parent").
			AddRow(2, "bob", "child"))

	router, h := newAdminRouter()
	router.GET("/admin/family_members/:family_id", h.FamilyMembers)

	req := httptest.NewRequest("GET", "/admin/family_members/1001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Len(t, data["members"], 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandler_FamilyMembers_InvalidID(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	router, h := newAdminRouter()
	router.GET("/admin/family_members/:family_id", h.FamilyMembers)

	req := httptest.NewRequest("GET", "/admin/family_members/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "无效的家庭ID")
}

func TestAdminHandler_FamilyExpenses(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT expenses.id, users.username, .* JOIN users ON expenses.user_id = users.id").
		WithArgs(int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "category", "amount", "date", "expense_type"}).
			AddRow(1, "alice", "Food", 12.5, "2024-01-01", "grocery"))

	router, h := newAdminRouter()
	router.GET("/admin/family_expenses/:family_id", h.FamilyExpenses)

	req := httptest.NewRequest("GET", "/admin/family_expenses/1001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1001), data["family_id"])
	assert.Len(t, data["expenses"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandler_ExportAllCSV(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := testConfig()
	config.GlobalConfig = cfg
	defer func() { config.GlobalConfig = nil }()

	// 每个家庭的抓取是并发的，到达顺序不固定
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("SELECT DISTINCT `family_id` FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"family_id"}).
			AddRow(1001).
			AddRow(1002))

	// 家庭 1001：一条缺日期（SQL 已转为字面量 NULL），一条正常
	mock.ExpectQuery("SELECT u.family_id, u.username").
		WithArgs(int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"family_id", "username", "category", "amount", "date", "expense_type"}).
			AddRow(1001, "alice", "Food", "12.50", "2024-01-05", "grocery").
			AddRow(1001, "bob", "NULL", "3.00", "NULL", "NULL"))

	mock.ExpectQuery("SELECT u.family_id, u.username").
		WithArgs(int64(1002)).
		WillReturnRows(sqlmock.NewRows([]string{"family_id", "username", "category", "amount", "date", "expense_type"}).
			AddRow(1002, "carol", "Toys", "8.00", "2024-01-01", "gift"))

	router, h := newAdminRouter()
	router.GET("/admin/export_all_csv", h.ExportAllCSV)

	req := httptest.NewRequest("GET", "/admin/export_all_csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "all_expenses.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Family ID,Username,Category,Amount,Date,Expense Type", lines[0])

	// 行按 (家庭ID, 日期) 升序，缺失日期排最前；缺失值渲染为字面量 NULL
	assert.Equal(t, "1001,bob,NULL,3.00,NULL,NULL", lines[1])
	assert.Equal(t, "1001,alice,Food,12.50,2024-01-05,grocery", lines[2])
	assert.Equal(t, "1002,carol,Toys,8.00,2024-01-01,gift", lines[3])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandler_ExportAllCSV_FamilyFailureAbortsExport(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := testConfig()
	config.GlobalConfig = cfg
	defer func() { config.GlobalConfig = nil }()

	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("SELECT DISTINCT `family_id` FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"family_id"}).
			AddRow(1001).
			AddRow(1002))

	mock.ExpectQuery("SELECT u.family_id, u.username").
		WithArgs(int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"family_id", "username", "category", "amount", "date", "expense_type"}).
			AddRow(1001, "alice", "Food", "12.50", "2024-01-05", "grocery"))

	// 家庭 1002 查询失败：整个导出失败（全有或全无）
	mock.ExpectQuery("SELECT u.family_id, u.username").
		WithArgs(int64(1002)).
		WillReturnError(assert.AnError)

	router, h := newAdminRouter()
	router.GET("/admin/export_all_csv", h.ExportAllCSV)

	req := httptest.NewRequest("GET", "/admin/export_all_csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 500, w.Code)
	assert.Contains(t, w.Body.String(), "家庭 1002 导出失败")
}

func TestAdminHandler_ExportAllCSV_NoFamilies(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := testConfig()
	config.GlobalConfig = cfg
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT DISTINCT `family_id` FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"family_id"}))

	router, h := newAdminRouter()
	router.GET("/admin/export_all_csv", h.ExportAllCSV)

	req := httptest.NewRequest("GET", "/admin/export_all_csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 没有任何家庭时仍返回只有表头的 CSV
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "Family ID,Username,Category,Amount,Date,Expense Type", strings.TrimSpace(w.Body.String()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandler_ExportAllExcel(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := testConfig()
	config.GlobalConfig = cfg
	defer func() { config.GlobalConfig = nil }()

	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("SELECT DISTINCT `family_id` FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"family_id"}).
			AddRow(1001))

	mock.ExpectQuery("SELECT u.family_id, u.username").
		WithArgs(int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"family_id", "username", "category", "amount", "date", "expense_type"}).
			AddRow(1001, "alice", "Food", "12.50", "2024-01-05", "grocery"))

	router, h := newAdminRouter()
	router.GET("/admin/export_all_excel", h.ExportAllExcel)

	req := httptest.NewRequest("GET", "/admin/export_all_excel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "all_expenses.xlsx")
	assert.NotEmpty(t, w.Body.Bytes())
	require.NoError(t, mock.ExpectationsWereMet())
}
