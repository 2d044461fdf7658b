package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/novelsync/internal/handler"
	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/middleware"
	"gorm.io/gorm"
)

// 不记录访问日志的路径，SSE长连接会在断开时才结束
const eventsPath = "/api/v1/sync/events"

// Handlers 路由需要的处理器
type Handlers struct {
	Novel *handler.NovelHandler
	Meta  *handler.MetaHandler
	Sync  *handler.SyncHandler
}

// Router 路由配置
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
}

// NewRouter 创建路由实例
func NewRouter(h Handlers, db *gorm.DB) *Router {
	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = logger.NewGinLogWriter()

	engine := gin.New()
	loggerMiddleware := middleware.NewLoggerMiddleware("/health", eventsPath)

	// 使用中间件
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware.RequestID())
	engine.Use(loggerMiddleware.Logger())

	// 配置CORS，界面层运行在本机的另一个源
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r := &Router{engine: engine, db: db}
	r.register(h)
	return r
}

func (r *Router) register(h Handlers) {
	// 健康检查
	r.engine.GET("/health", r.health)

	// 浏览器授权回调
	r.engine.GET("/oauth/callback", h.Sync.OAuthCallback)

	api := r.engine.Group("/api/v1")
	{
		novels := api.Group("/novels")
		{
			novels.POST("", h.Novel.CreateNovel)
			novels.GET("", h.Novel.ListNovels)
			novels.GET("/:id", h.Novel.GetNovel)
			novels.PATCH("/:id", h.Novel.UpdateNovel)
			novels.POST("/:id/save", h.Novel.SaveNovel)
			novels.DELETE("/:id", h.Novel.DeleteNovel)
		}

		api.GET("/folders", h.Meta.ListFolders)
		api.POST("/folders", h.Meta.CreateFolder)
		api.GET("/tags", h.Meta.ListTags)
		api.POST("/tags", h.Meta.CreateTag)
		api.GET("/settings", h.Meta.GetSettings)
		api.PUT("/settings", h.Meta.PutSettings)

		sync := api.Group("/sync")
		{
			sync.POST("/signin", h.Sync.SignIn)
			sync.POST("/signout", h.Sync.SignOut)
			sync.POST("/manual", h.Sync.ManualSync)
			sync.POST("/pull", h.Sync.Pull)
			sync.GET("/status", h.Sync.Status)
			sync.GET("/quota", h.Sync.Quota)
			sync.GET("/logs", h.Sync.Logs)
			sync.GET("/events", h.Sync.Events)
			sync.POST("/online", h.Sync.Online)
		}

		api.POST("/reset", h.Sync.Reset)
	}
}

// health 同时检查本地数据库连接
func (r *Router) health(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Service is running"})
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
