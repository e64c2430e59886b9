// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"wellmind-go/internal/service"
	"wellmind-go/pkg/log"
	"wellmind-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// stopTokenTTL 停止令牌在 Redis 中的有效期。
const stopTokenTTL = 24 * time.Hour

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
	rdb         *redis.Client
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager, rdb *redis.Client) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
		rdb:         rdb,
	}
}

// GetWebsocketStopToken 签发一个可用于停止流式回复的令牌。
// 令牌存于 Redis，多实例部署下任意节点都能校验。
func (h *ChatHandler) GetWebsocketStopToken(c *gin.Context) {
	userID := currentUserID(c)
	stopToken := "WSS_STOP_CMD_" + token.GenerateRandomString(16)

	key := fmt.Sprintf("chat:stop_token:%d", userID)
	if err := h.rdb.Set(c.Request.Context(), key, stopToken, stopTokenTTL).Err(); err != nil {
		log.Errorf("保存停止令牌失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法生成停止令牌"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"cmdToken": stopToken}})
}

// wsInbound 是客户端发来的控制/消息帧。
type wsInbound struct {
	Type             string `json:"type"`
	Content          string `json:"content"`
	InternalCmdToken string `json:"_internal_cmd_token"`
}

// Handle 处理一个传入的 WebSocket 连接。
// 每条用户消息触发一次轮次流，事件以 JSON 帧逐条下发；
// 带有效停止令牌的 stop 帧会取消当前正在进行的流。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	// 写锁：流转发协程与控制回执可能并发写同一连接
	var writeMu sync.Mutex
	writeJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, b)
	}

	// 当前流的取消函数，stop 指令触发
	var streamMu sync.Mutex
	var cancelStream context.CancelFunc
	var streamDone chan struct{}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var inbound wsInbound
		if err := json.Unmarshal(message, &inbound); err != nil {
			// 裸文本视为一条用户消息
			inbound = wsInbound{Type: "message", Content: string(message)}
		}

		if inbound.Type == "stop" {
			if h.validateStopToken(c.Request.Context(), claims.UserID, inbound.InternalCmdToken) {
				streamMu.Lock()
				if cancelStream != nil {
					cancelStream()
				}
				streamMu.Unlock()
				_ = writeJSON(gin.H{
					"type":      "stop",
					"message":   "响应已停止",
					"timestamp": time.Now().UnixMilli(),
				})
			}
			continue
		}

		if inbound.Content == "" {
			continue
		}

		// 等待上一条消息的流结束，保证同一连接上的轮次串行
		if streamDone != nil {
			<-streamDone
		}

		streamCtx, cancel := context.WithCancel(c.Request.Context())
		done := make(chan struct{})
		streamMu.Lock()
		cancelStream = cancel
		streamDone = done
		streamMu.Unlock()

		go func(userID uint, content string) {
			defer close(done)
			defer cancel()

			events := h.chatService.CreateChatStream(streamCtx, userID, content)
			for ev := range events {
				if err := writeJSON(ev); err != nil {
					log.Warnf("下发事件失败: %v", err)
					// 连接已断，排空剩余事件让轮次收尾
					for range events {
					}
					return
				}
			}
			_ = writeJSON(gin.H{
				"type":      "completion",
				"status":    "finished",
				"timestamp": time.Now().UnixMilli(),
			})
		}(claims.UserID, inbound.Content)
	}

	// 连接关闭时取消未完成的流
	streamMu.Lock()
	if cancelStream != nil {
		cancelStream()
	}
	streamMu.Unlock()
}

// validateStopToken 校验停止令牌是否与 Redis 中该用户的令牌一致。
func (h *ChatHandler) validateStopToken(ctx context.Context, userID uint, cmdToken string) bool {
	if cmdToken == "" {
		return false
	}
	key := fmt.Sprintf("chat:stop_token:%d", userID)
	stored, err := h.rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return stored == cmdToken
}
