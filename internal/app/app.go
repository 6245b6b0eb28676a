package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mcq_tutor_backend/internal/config"
	"mcq_tutor_backend/internal/controller"
	"mcq_tutor_backend/internal/repository"
	"mcq_tutor_backend/internal/service"
	"mcq_tutor_backend/pkg/database"
	"mcq_tutor_backend/pkg/logger"
	"mcq_tutor_backend/pkg/monitoring"
	"mcq_tutor_backend/pkg/security"
	"mcq_tutor_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	user        *repository.UserRepository
	lecture     *repository.LectureRepository
	question    *repository.QuestionRepository
	explanation *repository.ExplanationRepository
	session     *repository.SessionRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	document    *service.DocumentService
	mcq         *service.MCQService
	retrieval   *service.RetrievalService
	explanation *service.ExplanationService
	xai         *service.XAIService
	chat        *service.ChatService
	router      *service.HybridRouter
}

type controllers struct {
	auth    *controller.AuthController
	lecture *controller.LectureController
	mcq     *controller.MCQController
	xai     *controller.XAIController
	health  *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		lecture:     repository.NewLectureRepository(db),
		question:    repository.NewQuestionRepository(db),
		explanation: repository.NewExplanationRepository(db),
		session:     repository.NewSessionRepository(rdb),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.document = service.NewDocumentService(repos.lecture, s.storage)

	s.router = service.NewHybridRouter(
		service.NewOnlineLLMClient(cfg.LLM.Online),
		service.NewOfflineLLMClient(cfg.LLM.Offline),
	)

	s.retrieval = service.NewRetrievalService(cfg)
	s.explanation = service.NewExplanationService(s.router, cfg)
	s.xai = service.NewXAIService(repos.question, repos.explanation, s.retrieval, s.explanation, cfg)
	s.mcq = service.NewMCQService(repos.lecture, repos.question, s.router)
	s.chat = service.NewChatService(repos.session, repos.lecture, s.xai, s.retrieval, s.router)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		lecture: controller.NewLectureController(s.document),
		mcq:     controller.NewMCQController(s.mcq),
		xai:     controller.NewXAIController(s.xai, s.chat),
		health:  controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("mcq-tutor", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

// ApplyConfig 接收热加载后的配置。目前只有缓存版本标签支持运行时切换，
// 其余配置项仍需重启生效。
func (a *App) ApplyConfig(cfg *config.Config) {
	a.services.xai.SetSourceTag(cfg.XAI.SourceTag)
	logger.Log.Info("config reloaded",
		zap.String("xai_source_tag", cfg.XAI.SourceTag))
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
