package routes

import (
	"civicstream-be/controllers"
	"civicstream-be/middlewares"

	"github.com/gin-gonic/gin"
)

// UserRoutes sets up the user directory routes
func UserRoutes(r *gin.Engine, uc *controllers.UserController) {
	users := r.Group("/api/users", middlewares.AuthMiddleware())
	{
		users.GET("", uc.ListUsers)
		users.PUT("/me/avatar", uc.UpdateAvatar)
	}
}
