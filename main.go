package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"civicstream-be/config"
	"civicstream-be/controllers"
	"civicstream-be/realtime"
	"civicstream-be/routes"
	"civicstream-be/services"
	"civicstream-be/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	db := config.ConnectDB()
	if db == nil {
		log.Fatal("Failed to connect to MongoDB")
	}
	log.Println("MongoDB connection established successfully!")

	config.ConnectRedis()

	hub := realtime.NewHub()
	issueStore := store.NewMongoIssueStore(config.GetCollection("issues"), hub)
	userStore := store.NewMongoUserStore(config.GetCollection("users"), hub)
	issueService := services.NewIssueService(issueStore)

	authController := controllers.NewAuthController(userStore)
	issueController := controllers.NewIssueController(issueService)
	userController := controllers.NewUserController(userStore)
	streamController := controllers.NewStreamController(hub, issueStore, userStore)

	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsConfig.AllowOrigins = strings.Split(origins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	createLimit := 10
	if v, err := strconv.Atoi(os.Getenv("ISSUE_CREATE_DAILY_LIMIT")); err == nil && v > 0 {
		createLimit = v
	}

	routes.AuthRoutes(r, authController)
	routes.IssueRoutes(r, issueController, createLimit)
	routes.UserRoutes(r, userController)
	routes.StreamRoutes(r, streamController)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
