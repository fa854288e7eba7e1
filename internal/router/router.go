package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/config"
	"github.com/stemsi/cbt-backend/internal/handler"
	"github.com/stemsi/cbt-backend/internal/metrics"
	"github.com/stemsi/cbt-backend/internal/middleware"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/response"
)

// compressMinLength is the smallest body worth compressing.
const compressMinLength = 1024

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Question *handler.QuestionHandler
	Exam     *handler.ExamHandler
	Session  *handler.SessionHandler
	Attempt  *handler.AttemptHandler
	Stats    *handler.StatsHandler
	Student  *handler.StudentHandler
	Monitor  *handler.MonitorHandler
	System   *handler.SystemHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log and every envelope share it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(metrics.Middleware())
	router.Use(middleware.Brotli(compressMinLength, "/metrics", "/ws/"))

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api/v1")

	// ─── 0. Auth (Public, rate limited) ────────────────────────────────
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)
		authGroup.POST("/register", loginLimiter.Middleware(), handlers.Auth.Register)
		authGroup.GET("/me", middleware.RequireJWT(auth), handlers.Auth.Me)
	}

	// ─── 1. Student API ────────────────────────────────────────────────
	studentAPI := api.Group("/student")
	studentAPI.Use(middleware.RequireJWT(auth), middleware.RequireRole(model.RoleStudent))
	{
		studentAPI.GET("/exams/active", handlers.Exam.ListActiveExams)
		studentAPI.POST("/exams/:id/start", middleware.NoStore(), handlers.Session.StartExam)

		session := studentAPI.Group("/session")
		session.Use(middleware.NoStore())
		{
			session.GET("", handlers.Session.GetSession)
			session.PUT("/answers/:question_id", handlers.Session.SaveAnswer)
			session.DELETE("/answers/:question_id", handlers.Session.ClearAnswer)
			session.POST("/navigate", handlers.Session.Navigate)
			session.POST("/submit", handlers.Session.Submit)
		}

		studentAPI.GET("/attempts", handlers.Attempt.ListMyAttempts)
		studentAPI.GET("/stats", handlers.Stats.MyStats)
	}

	// ─── 2. WebSocket (token via query) ────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireJWT(auth), middleware.RequireRole(model.RoleStudent))
	{
		ws.GET("/session", handlers.WS.SessionStream)
	}

	// ─── 3. Admin API ──────────────────────────────────────────────────
	adminAPI := api.Group("/admin")
	adminAPI.Use(middleware.RequireJWT(auth), middleware.RequireRole(model.RoleAdmin))
	{
		questions := adminAPI.Group("/questions")
		{
			questions.GET("", handlers.Question.ListQuestions)
			questions.POST("", handlers.Question.CreateQuestion)
			questions.POST("/by-ids", handlers.Question.GetQuestionsByIDs)
			questions.GET("/:id", handlers.Question.GetQuestion)
			questions.PUT("/:id", handlers.Question.UpdateQuestion)
			questions.DELETE("/:id", handlers.Question.DeleteQuestion)
		}

		exams := adminAPI.Group("/exams")
		{
			exams.GET("", handlers.Exam.ListExams)
			exams.POST("", handlers.Exam.CreateExam)
			exams.GET("/:id", handlers.Exam.GetExam)
			exams.PUT("/:id", handlers.Exam.UpdateExam)
			exams.PATCH("/:id/active", handlers.Exam.SetExamActive)
			exams.DELETE("/:id", handlers.Exam.DeleteExam)
			exams.GET("/:id/results", handlers.Exam.GetExamResults)
			exams.GET("/:id/monitor", handlers.Monitor.MonitorExamSSE)
		}

		students := adminAPI.Group("/students")
		{
			students.GET("", handlers.Student.ListStudents)
			students.POST("", handlers.Student.CreateStudent)
			students.GET("/:id", handlers.Student.GetStudent)
			students.DELETE("/:id", handlers.Student.DeleteStudent)
		}

		adminAPI.GET("/attempts", handlers.Attempt.ListAttempts)
		adminAPI.GET("/attempts/student/:id", handlers.Attempt.ListStudentAttempts)
		adminAPI.GET("/attempts/:id", handlers.Attempt.GetAttempt)

		adminAPI.GET("/stats/system", handlers.Stats.SystemStats)
		adminAPI.GET("/stats/students/:id", handlers.Stats.StudentStats)

		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
