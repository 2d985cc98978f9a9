package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/momspace/momspace_backend/audit"
	"github.com/momspace/momspace_backend/controllers"
	"github.com/momspace/momspace_backend/database"
	"github.com/momspace/momspace_backend/docs"
	"github.com/momspace/momspace_backend/middleware"
	"github.com/momspace/momspace_backend/ratelimit"
	"github.com/momspace/momspace_backend/websocket"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Momspace API
// @version         1.0
// @description     API Server for the Momspace community application
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database connection established")

	// Redis backs the sliding-window rate limits; limit checks fail open
	// when it is unreachable
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASS"),
	})
	limiter := ratelimit.NewLimiter(redisClient, "momspace:rl:")

	// Realtime change feed
	hub := websocket.NewHub()
	go hub.Run()

	auditor := audit.New(db)

	authController := controllers.NewAuthController(db)
	spaceController := controllers.NewSpaceController(db)
	messageController := controllers.NewMessageController(db, hub)
	anonRoomController := controllers.NewAnonRoomController(db, hub, limiter)
	reportController := controllers.NewReportController(db, hub, limiter, auditor)
	accountController := controllers.NewAccountController(db)

	// Set up Swagger info
	docs.SwaggerInfo.Title = "Momspace API"
	docs.SwaggerInfo.Description = "API Server for the Momspace community application"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:" + os.Getenv("PORT")
	if docs.SwaggerInfo.Host == "localhost:" {
		docs.SwaggerInfo.Host = "localhost:8080"
	}
	docs.SwaggerInfo.BasePath = "/"
	docs.SwaggerInfo.Schemes = []string{"http"}

	// Set up router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Authentication routes
	auth := router.Group("/api")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
	}

	// Protected routes
	api := router.Group("/api")
	api.Use(middleware.JWTAuth())
	{
		// Space routes
		api.GET("/spaces", spaceController.GetSpaces)
		api.GET("/spaces/search", spaceController.SearchSpaces)
		api.POST("/spaces", spaceController.CreateSpace)
		api.POST("/spaces/:id/join", spaceController.JoinSpace)
		api.DELETE("/spaces/:id/leave", spaceController.LeaveSpace)

		// Message routes
		api.GET("/channels/:id/messages", messageController.GetMessages)
		api.POST("/channels/:id/messages", messageController.CreateMessage)
		api.POST("/channels/:id/seen", messageController.MarkSeen)

		// Anonymous room routes
		api.GET("/anon/room", anonRoomController.GetCurrentRoom)
		api.GET("/anon/rooms/:id/messages", anonRoomController.GetRoomMessages)
		api.POST("/anon/rooms/:id/messages", anonRoomController.SendMessage)

		// Moderation and account routes
		api.POST("/reports", reportController.CreateReport)
		api.DELETE("/account", accountController.DeleteAccount)
	}

	// WebSocket route
	router.GET("/ws", websocket.HandleConnection(hub))

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server running on port %s", port)
	log.Printf("Swagger documentation available at http://localhost:%s/swagger/index.html", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
