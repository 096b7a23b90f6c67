package routes

import (
	"civicstream-be/controllers"
	"civicstream-be/middlewares"

	"github.com/gin-gonic/gin"
)

// StreamRoutes sets up the real-time subscription routes
func StreamRoutes(r *gin.Engine, sc *controllers.StreamController) {
	stream := r.Group("/api/stream", middlewares.AuthMiddleware())
	{
		stream.GET("/issues", sc.StreamIssues)
		stream.GET("/users", sc.StreamUsers)
	}
}
