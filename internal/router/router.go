package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/coursepulse/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "coursepulse_session"

// Options 为路由层的可调参数
type Options struct {
	SessionSecret string
	// AllowOrigins 为空时不启用 CORS
	AllowOrigins []string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handler.RequestID())
	r.Use(handler.RequestLogger(api.Logger()))

	if len(opts.AllowOrigins) > 0 {
		r.Use(corsMiddleware(opts.AllowOrigins))
	}

	// 配置会话中间件
	secret := strings.TrimSpace(opts.SessionSecret)
	if secret == "" {
		secret = "coursepulse-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(handler.LocaleMiddleware())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/login", api.Login)
		apiGroup.POST("/logout", api.Logout)

		// 购买流程回调，使用共享令牌而非学员会话
		internal := apiGroup.Group("/internal", api.InternalTokenRequired())
		{
			internal.POST("/enrollments", api.GrantEnrollment)
			internal.DELETE("/enrollments", api.RevokeEnrollment)
		}

		// 需要登录的学员接口
		learner := apiGroup.Group("", handler.AuthRequired())
		{
			learner.GET("/progress", api.GetProgress)
			learner.POST("/lessons/:id/complete", api.SetLessonCompletion)
			learner.PUT("/profile", api.UpdateProfile)
		}
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept-Language", "X-Request-ID", "X-Internal-Token"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Language"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
