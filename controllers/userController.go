package controllers

import (
	"context"
	"net/http"

	"civicstream-be/models"
	"civicstream-be/store"

	"github.com/gin-gonic/gin"
)

// UserController serves the user directory and the avatar update, the one
// profile mutation this backend supports.
type UserController struct {
	Users store.UserStore
}

func NewUserController(users store.UserStore) *UserController {
	return &UserController{Users: users}
}

// ListUsers returns the user directory keyed by id, so clients can resolve
// reporter and commenter identities from a single payload.
func (uc *UserController) ListUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	users, err := uc.Users.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}

	directory := make(map[string]models.User, len(users))
	for _, user := range users {
		directory[user.ID.Hex()] = user
	}

	c.JSON(http.StatusOK, gin.H{"users": directory})
}

// UpdateAvatar changes the caller's avatar reference.
func (uc *UserController) UpdateAvatar(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Avatar string `json:"avatar" binding:"required,max=500"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	user, err := uc.Users.SetAvatar(ctx, caller.ID, input.Avatar)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}
