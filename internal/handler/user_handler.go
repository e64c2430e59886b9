package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wellmind-go/internal/middleware"
	"wellmind-go/internal/service"
	"wellmind-go/pkg/log"
)

// currentUserID 取出认证中间件注入的用户 ID。
func currentUserID(c *gin.Context) uint {
	return middleware.CurrentUserID(c)
}

// UserHandler 负责处理用户档案相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile 返回当前用户的档案信息。
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := currentUserID(c)

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("GetProfile: failed for user %d, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"id":                  user.ID,
			"username":            user.Username,
			"displayName":         user.DisplayName,
			"goals":               user.Goals,
			"onboardingCompleted": user.OnboardingCompleted,
		},
	})
}
