package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wellmind-go/internal/service"
	"wellmind-go/pkg/log"
)

// WellnessHandler 提供健康数据的只读 API：计划、笔记、提醒、历史。
type WellnessHandler struct {
	wellnessService service.WellnessService
}

// NewWellnessHandler 创建一个新的 WellnessHandler 实例。
func NewWellnessHandler(wellnessService service.WellnessService) *WellnessHandler {
	return &WellnessHandler{wellnessService: wellnessService}
}

// GetWellnessPlan 返回当前用户的健康计划文本。
func (h *WellnessHandler) GetWellnessPlan(c *gin.Context) {
	userID := currentUserID(c)

	plan, err := h.wellnessService.GetWellnessPlan(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("GetWellnessPlan: failed for user %d, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取健康计划"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"plan": plan}})
}

// ListNotes 返回当前用户的全部笔记。
func (h *WellnessHandler) ListNotes(c *gin.Context) {
	userID := currentUserID(c)

	notes, err := h.wellnessService.ListNotes(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("ListNotes: failed for user %d, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取笔记列表"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": notes})
}

// ListReminders 返回当前用户的全部提醒。
func (h *WellnessHandler) ListReminders(c *gin.Context) {
	userID := currentUserID(c)

	reminders, err := h.wellnessService.ListReminders(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("ListReminders: failed for user %d, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取提醒列表"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": reminders})
}

// GetHistory 返回最近的会话消息，按时间升序。
func (h *WellnessHandler) GetHistory(c *gin.Context) {
	userID := currentUserID(c)

	limit := 30
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	messages, err := h.wellnessService.RecentHistory(c.Request.Context(), userID, limit)
	if err != nil {
		log.Errorf("GetHistory: failed for user %d, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取会话历史"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": messages})
}

// GetContentItem 查询一条健康内容目录条目。
func (h *WellnessHandler) GetContentItem(c *gin.Context) {
	itemID := c.Param("id")
	if itemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "内容 ID 不能为空"})
		return
	}

	item, err := h.wellnessService.GetContentItem(c.Request.Context(), itemID)
	if err != nil {
		log.Errorf("GetContentItem: failed for item %s, error: %v", itemID, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "内容不存在或目录服务不可用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": item})
}
