package main

import (
	"log"
	"os"

	"finops-backend/internal/database"
	"finops-backend/internal/handler"
	"finops-backend/internal/middleware"
	"finops-backend/internal/repository"
	"finops-backend/internal/service"
	"finops-backend/internal/websocket"
	"finops-backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Budget Ledger & Transaction API
// @version         1.0
// @description     Nested budget ledger with re-allocation approvals and transactional procurement/logistics spend.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	zlog, err := logger.FromEnv()
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer zlog.Sync()

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		zlog.Fatal("Database connection failed", zap.Error(err))
	}
	zlog.Info("Connected to PostgreSQL")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	budgetRepo := repository.NewBudgetRepository(db)
	procurementRepo := repository.NewProcurementRepository(db)
	logisticsRepo := repository.NewLogisticsRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	budgetService := service.NewBudgetService(budgetRepo, auditRepo, txManager, zlog)
	alignmentService := service.NewAlignmentService(budgetRepo, auditRepo, txManager, wsHub, zlog)
	procurementService := service.NewProcurementService(procurementRepo, budgetRepo, inventoryRepo, auditRepo, txManager, wsHub, zlog)
	logisticsService := service.NewLogisticsService(logisticsRepo, budgetRepo, auditRepo, txManager, wsHub, zlog)
	auditService := service.NewAuditService(auditRepo)
	reportService := service.NewReportService(budgetRepo, procurementRepo, logisticsRepo)

	// Initialize Handlers
	budgetHandler := handler.NewBudgetHandler(budgetService)
	alignmentHandler := handler.NewAlignmentHandler(alignmentService)
	procurementHandler := handler.NewProcurementHandler(procurementService)
	logisticsHandler := handler.NewLogisticsHandler(logisticsService)
	auditHandler := handler.NewAuditHandler(auditService)
	reportHandler := handler.NewReportHandler(reportService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	budgetHandler.RegisterRoutes(router.Group(""))
	alignmentHandler.RegisterRoutes(router.Group(""))
	procurementHandler.RegisterRoutes(router.Group(""))
	logisticsHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	reportHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	zlog.Info("Server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		zlog.Fatal("Server failed", zap.Error(err))
	}
}
