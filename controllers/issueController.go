package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"civicstream-be/models"
	"civicstream-be/services"
	"civicstream-be/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requestTimeout = 10 * time.Second

// IssueController exposes the issue lifecycle over HTTP.
type IssueController struct {
	Service *services.IssueService
}

func NewIssueController(service *services.IssueService) *IssueController {
	return &IssueController{Service: service}
}

// callerFromContext reads the identity the auth middleware attached.
func callerFromContext(c *gin.Context) (services.Caller, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return services.Caller{}, false
	}
	userID, ok := userIDVal.(string)
	if !ok {
		return services.Caller{}, false
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return services.Caller{}, false
	}
	isAdminVal, _ := c.Get("is_admin")
	isAdmin, _ := isAdminVal.(bool)
	return services.Caller{ID: id, IsAdmin: isAdmin}, true
}

// respondError maps domain errors onto stable HTTP responses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
	case errors.Is(err, services.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to perform this action"})
	case errors.Is(err, services.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "Issue is no longer actionable"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Concurrent update, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

// issueView enriches an issue with vote tallies and the caller's own vote.
type issueView struct {
	models.Issue
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
	Score     int    `json:"score"`
	UserVote  string `json:"userVote,omitempty"`
}

func newIssueView(issue models.Issue, callerID primitive.ObjectID) issueView {
	view := issueView{
		Issue:     issue,
		Upvotes:   len(issue.UpvotedBy),
		Downvotes: len(issue.DownvotedBy),
		Score:     issue.Score(),
	}
	if models.HasVoter(issue.UpvotedBy, callerID) {
		view.UserVote = string(models.Upvote)
	} else if models.HasVoter(issue.DownvotedBy, callerID) {
		view.UserVote = string(models.Downvote)
	}
	return view
}

func issueViews(issues []models.Issue, callerID primitive.ObjectID) []issueView {
	views := make([]issueView, 0, len(issues))
	for _, issue := range issues {
		views = append(views, newIssueView(issue, callerID))
	}
	return views
}

func issueIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Title       string          `json:"title" binding:"required,max=200"`
		Description string          `json:"description" binding:"required,max=2000"`
		Priority    string          `json:"priority" binding:"required"`
		Image       string          `json:"image,omitempty"`
		Location    models.Location `json:"location"`
		Address     string          `json:"address" binding:"required,max=300"`
		FundsGoal   int64           `json:"fundsGoal"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issue, err := ic.Service.Create(ctx, services.IssueDraft{
		Title:       input.Title,
		Description: input.Description,
		Priority:    models.IssuePriority(input.Priority),
		Image:       input.Image,
		Location:    input.Location,
		Address:     input.Address,
		FundsGoal:   input.FundsGoal,
	}, caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newIssueView(issue, caller.ID))
}

// GetFeed returns every visible issue, newest first.
func (ic *IssueController) GetFeed(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issues, err := ic.Service.Feed(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"issues": issueViews(issues, caller.ID)})
}

// GetModerationQueue returns issues pending approval. Admin only.
func (ic *IssueController) GetModerationQueue(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issues, err := ic.Service.Moderation(ctx, caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"issues": issueViews(issues, caller.ID)})
}

// GetIssue retrieves an issue by its ID with vote information
func (ic *IssueController) GetIssue(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issue, err := ic.Service.Get(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newIssueView(issue, caller.ID))
}

// VoteOnIssue toggles the caller's vote on an issue.
func (ic *IssueController) VoteOnIssue(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	var input struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issue, err := ic.Service.Vote(ctx, issueID, caller.ID, models.VoteKind(input.Type))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newIssueView(issue, caller.ID))
}

// FundIssue adds a contribution to an issue's fundraising total.
func (ic *IssueController) FundIssue(c *gin.Context) {
	_, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	var input struct {
		Amount int64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	// No per-contributor ledger entry is kept; contributions are an
	// anonymous atomic increment, matching the observed product behavior.
	issue, err := ic.Service.Contribute(ctx, issueID, input.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"funds": issue.Funds, "fundsGoal": issue.FundsGoal})
}

// UpdateStatus moves an issue to a new lifecycle status. Admin only.
func (ic *IssueController) UpdateStatus(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issue, err := ic.Service.SetStatus(ctx, issueID, models.IssueStatus(input.Status), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newIssueView(issue, caller.ID))
}

// AddUpdate appends an admin progress update to an issue.
func (ic *IssueController) AddUpdate(c *gin.Context) {
	ic.appendLog(c, true)
}

// AddComment appends a comment to an issue.
func (ic *IssueController) AddComment(c *gin.Context) {
	ic.appendLog(c, false)
}

func (ic *IssueController) appendLog(c *gin.Context, isUpdate bool) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	var input struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var issue models.Issue
	var err error
	if isUpdate {
		issue, err = ic.Service.AddUpdate(ctx, issueID, input.Text, caller)
	} else {
		issue, err = ic.Service.AddComment(ctx, issueID, input.Text, caller)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newIssueView(issue, caller.ID))
}

// MarkDuplicate collapses an issue into its canonical original.
func (ic *IssueController) MarkDuplicate(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	var input struct {
		OriginalID string `json:"originalId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	originalID, err := primitive.ObjectIDFromHex(input.OriginalID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid original issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	issue, err := ic.Service.MarkDuplicate(ctx, issueID, originalID, caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newIssueView(issue, caller.ID))
}

// DeleteIssue permanently removes an issue. Reporter or admin only.
func (ic *IssueController) DeleteIssue(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := ic.Service.Delete(ctx, issueID, caller); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}
