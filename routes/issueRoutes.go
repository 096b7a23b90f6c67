package routes

import (
	"civicstream-be/controllers"
	"civicstream-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController, createLimit int) {
	issue := r.Group("/api/issue", middlewares.AuthMiddleware())
	{
		issue.POST("/create", middlewares.IssueRateLimiter(createLimit), ic.CreateIssue)
		issue.GET("/feed", ic.GetFeed)
		issue.GET("/moderation", ic.GetModerationQueue)
		issue.GET("/:id", ic.GetIssue)
		issue.POST("/:id/vote", ic.VoteOnIssue)
		issue.POST("/:id/fund", ic.FundIssue)
		issue.PATCH("/:id/status", ic.UpdateStatus)
		issue.POST("/:id/updates", ic.AddUpdate)
		issue.POST("/:id/comments", ic.AddComment)
		issue.POST("/:id/duplicate", ic.MarkDuplicate)
		issue.DELETE("/:id", ic.DeleteIssue)
	}
}
