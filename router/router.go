package router

import (
	"net/http"
	"time"

	"familybudget/api"
	"familybudget/config"
	_ "familybudget/docs"
	"familybudget/middleware"
	"familybudget/models"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// CORS 中间件
	r.Use(CORSMiddleware())

	authHandler := api.NewAuthHandler(cfg)
	familyHandler := api.NewFamilyHandler()
	expenseHandler := api.NewExpenseHandler()
	budgetHandler := api.NewBudgetHandler()
	updateHandler := api.NewUpdateHandler()
	adminHandler := api.NewAdminHandler()

	// 公开路由（注册/登录限流）
	loginLimit := middleware.LoginRateLimit(10, time.Minute)
	r.GET("/register", authHandler.RegisterForm)
	r.POST("/register", loginLimit, authHandler.Register)
	r.GET("/login", authHandler.LoginForm)
	r.POST("/login", loginLimit, authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	// 需要登录的家庭路由（租户范围由会话主体的 family_id 决定）
	authorized := r.Group("")
	authorized.Use(middleware.JWTAuth())
	{
		authorized.GET("/home", authHandler.Home)
		authorized.GET("/accounts", familyHandler.Accounts)
		authorized.GET("/open_expenses", expenseHandler.OpenExpenses)
		authorized.GET("/open_budget", budgetHandler.OpenBudget)
		authorized.POST("/view_category_expenses", expenseHandler.ViewCategoryExpenses)
		authorized.POST("/view_child_expenses", expenseHandler.ViewChildExpenses)
		authorized.POST("/update_table", updateHandler.UpdateTable)
		authorized.POST("/sync_budget", budgetHandler.SyncBudget)
		authorized.GET("/submit_expense", expenseHandler.SubmitExpenseForm)
		authorized.POST("/submit_expense", expenseHandler.SubmitExpense)

		// 仅家长
		parent := authorized.Group("")
		parent.Use(middleware.RoleRequired(models.RoleParent))
		{
			parent.GET("/edit_accounts", familyHandler.EditAccounts)
			parent.POST("/delete_user/:username", familyHandler.DeleteUser)
			parent.GET("/open_file", expenseHandler.OpenFileForm)
			parent.POST("/open_file", expenseHandler.OpenFile)
			parent.GET("/add_expense", expenseHandler.AddExpenseForm)
			parent.POST("/add_expense", expenseHandler.AddExpense)
			parent.GET("/create_table", budgetHandler.CreateTableForm)
			parent.POST("/create_table", budgetHandler.CreateTable)
			parent.GET("/delete_table", budgetHandler.DeleteTableForm)
			parent.POST("/delete_table", budgetHandler.DeleteTable)
			parent.POST("/delete_expense", expenseHandler.DeleteExpense)
		}
	}

	// 后台管理（仅管理员，不做租户过滤）
	admin := r.Group("/admin")
	admin.Use(middleware.JWTAuth(), middleware.AdminRequired())
	{
		admin.GET("/dashboard", adminHandler.Dashboard)
		admin.GET("/family_members/:family_id", adminHandler.FamilyMembers)
		admin.GET("/family_expenses/:family_id", adminHandler.FamilyExpenses)
		admin.GET("/export_all_csv", adminHandler.ExportAllCSV)
		admin.GET("/export_all_excel", adminHandler.ExportAllExcel)
	}

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
