package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/intenza/hfeval/internal/catalog"
	"github.com/intenza/hfeval/internal/config"
	"github.com/intenza/hfeval/internal/database"
	"github.com/intenza/hfeval/internal/queue"
	"github.com/intenza/hfeval/internal/storage"
	"github.com/intenza/hfeval/services/api-server/handlers"
	"github.com/intenza/hfeval/services/api-server/middleware"
)

// Server 人因評估API伺服器
type Server struct {
	config   *config.Config
	db       database.DatabaseInterface
	queue    queue.Client
	storage  storage.StorageInterface
	router   *gin.Engine
	handlers *handlers.Handlers
}

func main() {
	// 解析命令列參數
	var configPath string
	if len(os.Args) > 1 && os.Args[1] == "-config" && len(os.Args) > 2 {
		configPath = os.Args[2]
	} else {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("載入配置失敗: %v", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("建立伺服器失敗: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("啟動伺服器失敗: %v", err)
	}
}

// NewServer 建立伺服器並完成依賴初始化
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.APIServer.Mode)
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	}

	// 載入評估目錄；未指定路徑時使用內建目錄
	var cat *catalog.Catalog
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.LoadFromFile(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("載入評估目錄失敗: %w", err)
		}
		cat = loaded
		log.Printf("已從 %s 載入評估目錄", cfg.Catalog.Path)
	} else {
		cat = catalog.Default()
	}

	log.Printf("正在初始化資料庫連線: db=%s", cfg.Database.Database)
	db, err := database.NewPostgreSQLDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("初始化資料庫失敗: %w", err)
	}

	ctx := context.Background()
	if err := db.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("建立資料庫表失敗: %w", err)
	}

	redisQueue, err := queue.NewRedisQueue(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("初始化佇列失敗: %w", err)
	}

	minioStorage, err := storage.NewMinIOStorage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("初始化儲存失敗: %w", err)
	}

	if err := minioStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("確保儲存桶失敗: %w", err)
	}

	h := handlers.NewHandlers(db, redisQueue, minioStorage, cat)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	server := &Server{
		config:   cfg,
		db:       db,
		queue:    redisQueue,
		storage:  minioStorage,
		router:   router,
		handlers: h,
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	// 健康檢查
	api.GET("/health", s.handlers.Health)
	api.GET("/ready", s.handlers.Ready)

	// 評估目錄
	api.GET("/catalog", s.handlers.GetCatalog)

	// 表單填寫工具：會話與流程動作
	sessions := api.Group("/sessions")
	{
		sessions.POST("", s.handlers.CreateSession)
		sessions.GET("/:id", s.handlers.GetSession)
		sessions.POST("/:id/name", s.handlers.SubmitName)
		sessions.POST("/:id/name/reset", s.handlers.ResetName)
		sessions.POST("/:id/series", s.handlers.ChooseSeries)
		sessions.POST("/:id/verdict", s.handlers.RecordVerdict)
		sessions.POST("/:id/note", s.handlers.RecordNote)
		sessions.POST("/:id/section-note", s.handlers.RecordSectionNote)
		sessions.POST("/:id/score", s.handlers.RecordScore)
		sessions.POST("/:id/complete", s.handlers.CompleteMachine)
		sessions.POST("/:id/switch", s.handlers.SwitchSeries)
		sessions.POST("/:id/revise", s.handlers.ReviseMachine)
		sessions.GET("/:id/export", s.handlers.ExportSession)
	}

	// 持久化記錄
	records := api.Group("/records")
	{
		records.GET("/today", s.handlers.ExportToday)
		records.GET("/batches", s.handlers.ListBatches)
		records.GET("/batches/:batch_id", s.handlers.GetBatch)
	}

	// 分析工具
	analysis := api.Group("/analysis")
	{
		analysis.POST("/upload", s.handlers.AnalyzeUploads)
		analysis.GET("/summary", s.handlers.SummarizeStored)
		analysis.GET("/report", s.handlers.DownloadStoredReport)
		analysis.GET("/report-url", s.handlers.GetReportURL)
		analysis.GET("/reports", s.handlers.ListReports)
	}

	// 進度看板
	s.router.GET("/ws/progress", s.handlers.ProgressWS)
}

// Start 啟動伺服器並等待關閉信號
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIServer.Host, s.config.APIServer.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.APIServer.Timeout,
		WriteTimeout: s.config.APIServer.Timeout,
	}

	go func() {
		log.Printf("API伺服器啟動在 %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("啟動伺服器失敗: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在關閉伺服器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("伺服器關閉失敗: %v", err)
		return err
	}

	if err := s.db.Close(); err != nil {
		log.Printf("關閉資料庫失敗: %v", err)
	}

	s.queue.Close()

	log.Println("伺服器已關閉")
	return nil
}
