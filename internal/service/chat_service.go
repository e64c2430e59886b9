package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wellmind-go/internal/config"
	"wellmind-go/internal/model"
	"wellmind-go/internal/repository"
	"wellmind-go/internal/tools"
	"wellmind-go/pkg/llm"
	"wellmind-go/pkg/log"
)

// 事件流中的事件类型。
const (
	EventChunk   = "chunk"
	EventMessage = "message"
	EventError   = "error"
)

// DepthExceededMessage 达到工具调用深度上限时落库并下发的固定助手消息。
const DepthExceededMessage = "I've reached the maximum number of tool steps for this message. Please send a new message to continue."

// ErrMalformedHistory 表示持久化的 tool 消息缺少关联的 toolCallId。
// 这是数据完整性问题而非可恢复的运行时情况。
var ErrMalformedHistory = errors.New("malformed history: tool message missing correlating tool call id")

// ChatEvent 是对话事件流中的一个事件。
// chunk: 增量文本；message: 一条完成的助手消息；error: 终止性错误。
type ChatEvent struct {
	Event     string     `json:"event"`
	ID        string     `json:"id"`
	Seq       int        `json:"seq,omitempty"`
	Chunk     string     `json:"chunk,omitempty"`
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// EmbeddingEnqueuer 把消息交给后台向量化队列，入队不阻塞调用方。
type EmbeddingEnqueuer interface {
	Enqueue(messageID, content string)
}

// ChatService 定义了对话轮次引擎的接口。
type ChatService interface {
	// CreateChatStream 处理一条用户消息并返回事件流。
	// 流在 Done/DepthExceeded/错误 时关闭；所有失败都以 error 事件收尾。
	CreateChatStream(ctx context.Context, userID uint, content string) <-chan ChatEvent
}

type chatService struct {
	db            *gorm.DB
	userRepo      repository.UserRepository
	chatRepo      repository.ChatRepository
	llmClient     llm.Client
	registry      *tools.Registry
	promptBuilder PromptBuilder
	embedQueue    EmbeddingEnqueuer
	historyLimit  int
	maxDepth      int
	loc           *time.Location
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(db *gorm.DB, userRepo repository.UserRepository, chatRepo repository.ChatRepository,
	llmClient llm.Client, registry *tools.Registry, promptBuilder PromptBuilder,
	embedQueue EmbeddingEnqueuer, cfg config.Config) ChatService {

	loc, err := time.LoadLocation(cfg.Chat.Timezone)
	if err != nil {
		log.Warnf("[ChatService] 无法加载时区 %q, 使用本地时区: %v", cfg.Chat.Timezone, err)
		loc = time.Local
	}

	return &chatService{
		db:            db,
		userRepo:      userRepo,
		chatRepo:      chatRepo,
		llmClient:     llmClient,
		registry:      registry,
		promptBuilder: promptBuilder,
		embedQueue:    embedQueue,
		historyLimit:  cfg.Chat.HistoryLimit,
		maxDepth:      cfg.Chat.MaxToolCallDepth,
		loc:           loc,
	}
}

// CreateChatStream 处理一条用户消息并返回事件流。
func (s *chatService) CreateChatStream(ctx context.Context, userID uint, content string) <-chan ChatEvent {
	events := make(chan ChatEvent)
	go s.run(ctx, userID, content, events)
	return events
}

// run 是每次请求的轮次状态机：
// Streaming -> (Done | ToolDispatch) ; ToolDispatch -> (Streaming | DepthExceeded)。
// 显式循环 + 深度计数代替递归，事件通过 channel 与消费方解耦。
func (s *chatService) run(ctx context.Context, userID uint, content string, events chan<- ChatEvent) {
	defer close(events)

	db := s.db.WithContext(ctx)

	// 1. 幂等地确保 user/chat 行存在，各自独立短事务
	var user *model.User
	if err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = s.userRepo.EnsureUser(tx, userID)
		return err
	}); err != nil {
		s.emitError(events, "", fmt.Errorf("failed to ensure user: %w", err))
		return
	}

	var chat *model.Chat
	if err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		chat, err = s.chatRepo.EnsureChat(tx, userID)
		return err
	}); err != nil {
		s.emitError(events, "", fmt.Errorf("failed to ensure chat: %w", err))
		return
	}

	// 2. 持久化本条用户消息，向量化交给后台队列（不阻塞、失败不影响本轮）
	userMsg := model.Message{
		ID:      uuid.NewString(),
		ChatID:  chat.ID,
		UserID:  userID,
		Role:    model.RoleUser,
		Content: content,
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return s.chatRepo.CreateMessage(tx, &userMsg)
	}); err != nil {
		s.emitError(events, "", fmt.Errorf("failed to persist user message: %w", err))
		return
	}
	s.embedQueue.Enqueue(userMsg.ID, userMsg.Content)

	// 3. 重建历史为模型输入格式
	history, currentCount, totalCount, err := s.loadHistory(db, chat.ID)
	if err != nil {
		s.emitError(events, "", err)
		return
	}

	// 4. 系统提示由外部构建器产出，本引擎视为不透明字符串
	systemPrompt := s.promptBuilder.BuildSystemPrompt(user, chat, PromptContext{
		CurrentMessageCount: currentCount,
		TotalHistoryCount:   totalCount,
	})
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)

	// 5. 轮次循环
	depth := 0
	for {
		msgID := uuid.NewString()

		stream, err := s.llmClient.StreamChatCompletion(ctx, llm.ChatRequest{
			Messages:   messages,
			Tools:      s.registry.Definitions(),
			ToolChoice: "auto",
		})
		if err != nil {
			s.emitError(events, msgID, err)
			return
		}

		agg := llm.NewAggregator()
		seq := 0
		for {
			delta, recvErr := stream.Recv()
			if recvErr == io.EOF {
				break
			}
			if recvErr != nil {
				_ = stream.Close()
				s.emitError(events, msgID, recvErr)
				return
			}
			agg.Add(delta)
			if delta.Content != "" {
				events <- ChatEvent{Event: EventChunk, ID: msgID, Seq: seq, Chunk: delta.Content}
				seq++
			}
		}
		_ = stream.Close()

		// Streaming 完成：无工具调用则落库收尾
		if !agg.HasToolCalls() {
			final := agg.Content()
			assistantMsg := model.Message{
				ID:      msgID,
				ChatID:  chat.ID,
				UserID:  userID,
				Role:    model.RoleAssistant,
				Content: final,
			}
			if err := db.Transaction(func(tx *gorm.DB) error {
				return s.chatRepo.CreateMessage(tx, &assistantMsg)
			}); err != nil {
				s.emitError(events, msgID, fmt.Errorf("failed to persist assistant message: %w", err))
				return
			}
			s.embedQueue.Enqueue(assistantMsg.ID, assistantMsg.Content)
			events <- ChatEvent{
				Event:     EventMessage,
				ID:        msgID,
				Role:      model.RoleAssistant,
				Content:   final,
				CreatedAt: &assistantMsg.CreatedAt,
			}
			return // Done
		}

		// ToolDispatch
		if depth >= s.maxDepth {
			// 深度耗尽是设计好的终止态：落库固定说明文本并复用本轮消息 ID
			fallback := model.Message{
				ID:      msgID,
				ChatID:  chat.ID,
				UserID:  userID,
				Role:    model.RoleAssistant,
				Content: DepthExceededMessage,
			}
			if err := db.Transaction(func(tx *gorm.DB) error {
				return s.chatRepo.CreateMessage(tx, &fallback)
			}); err != nil {
				s.emitError(events, msgID, fmt.Errorf("failed to persist depth fallback: %w", err))
				return
			}
			events <- ChatEvent{
				Event:     EventMessage,
				ID:        msgID,
				Role:      model.RoleAssistant,
				Content:   DepthExceededMessage,
				CreatedAt: &fallback.CreatedAt,
			}
			return // DepthExceeded
		}

		toolCalls := agg.ToolCalls()

		// 先落库携带工具调用的助手消息，再发起任何后续网络调用
		toolData, err := model.EncodeToolData(model.ToolData{ToolCalls: toolCalls})
		if err != nil {
			s.emitError(events, msgID, fmt.Errorf("failed to encode tool calls: %w", err))
			return
		}
		assistantMsg := model.Message{
			ID:       msgID,
			ChatID:   chat.ID,
			UserID:   userID,
			Role:     model.RoleAssistant,
			Content:  agg.Content(),
			ToolData: toolData,
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			return s.chatRepo.CreateMessage(tx, &assistantMsg)
		}); err != nil {
			s.emitError(events, msgID, fmt.Errorf("failed to persist assistant message: %w", err))
			return
		}

		messages = append(messages, llm.Message{
			Role:      model.RoleAssistant,
			Content:   assistantMsg.Content,
			ToolCalls: toolCalls,
		})

		// 按模型声明的顺序串行执行工具：工具失败不会中断轮次，
		// 失败信息作为工具结果文本回传给模型
		toolMessages, err := s.executeTools(ctx, db, userID, chat.ID, toolCalls)
		if err != nil {
			s.emitError(events, msgID, err)
			return
		}
		messages = append(messages, toolMessages...)

		depth++
	}
}

// executeTools 串行执行一批工具调用，并把每个结果落库为一条 tool 消息。
// 返回追加到工作历史中的 tool 角色消息。
func (s *chatService) executeTools(ctx context.Context, db *gorm.DB, userID uint, chatID string, toolCalls []llm.ToolCall) ([]llm.Message, error) {
	results := make([]llm.Message, 0, len(toolCalls))

	for _, call := range toolCalls {
		var result string
		var toolMsg model.Message

		// 工具执行与其结果落库共用一个短事务
		err := db.Transaction(func(tx *gorm.DB) error {
			result = s.registry.Execute(ctx, tx, userID, chatID, call)

			toolData, err := model.EncodeToolData(model.ToolData{
				ToolCallID: call.ID,
				ToolName:   call.Function.Name,
			})
			if err != nil {
				return err
			}
			toolMsg = model.Message{
				ID:       uuid.NewString(),
				ChatID:   chatID,
				UserID:   userID,
				Role:     model.RoleTool,
				Content:  result,
				ToolData: toolData,
			}
			return s.chatRepo.CreateMessage(tx, &toolMsg)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to persist tool result: %w", err)
		}

		results = append(results, llm.Message{
			Role:       model.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
		})
	}
	return results, nil
}

// loadHistory 加载最近的历史消息并重建为模型输入格式。
// 每条 user 消息前插入一条携带本地化时间戳的合成 system 消息；
// tool 消息缺少关联 toolCallId 时返回 ErrMalformedHistory。
func (s *chatService) loadHistory(db *gorm.DB, chatID string) ([]llm.Message, int, int64, error) {
	recent, err := s.chatRepo.RecentMessages(db, chatID, s.historyLimit)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to load history: %w", err)
	}
	// 倒序取出后翻转为时间升序
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	total, err := s.chatRepo.CountMessages(db, chatID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to count history: %w", err)
	}

	history := make([]llm.Message, 0, len(recent)*2)
	for i := range recent {
		msg := &recent[i]
		switch msg.Role {
		case model.RoleUser:
			history = append(history, llm.Message{
				Role:    "system",
				Content: fmt.Sprintf("Current time: %s", msg.CreatedAt.In(s.loc).Format("2006-01-02 15:04:05")),
			})
			history = append(history, llm.Message{Role: model.RoleUser, Content: msg.Content})
		case model.RoleAssistant:
			td, err := msg.DecodeToolData()
			if err != nil {
				return nil, 0, 0, fmt.Errorf("failed to decode tool data for message %s: %w", msg.ID, err)
			}
			history = append(history, llm.Message{
				Role:      model.RoleAssistant,
				Content:   msg.Content,
				ToolCalls: td.ToolCalls,
			})
		case model.RoleTool:
			td, err := msg.DecodeToolData()
			if err != nil {
				return nil, 0, 0, fmt.Errorf("failed to decode tool data for message %s: %w", msg.ID, err)
			}
			if td.ToolCallID == "" {
				return nil, 0, 0, ErrMalformedHistory
			}
			history = append(history, llm.Message{
				Role:       model.RoleTool,
				Content:    msg.Content,
				ToolCallID: td.ToolCallID,
			})
		}
	}
	return history, len(recent), total, nil
}

// emitError 下发终止性 error 事件。
func (s *chatService) emitError(events chan<- ChatEvent, id string, err error) {
	log.Errorf("[ChatService] 轮次处理失败: %v", err)
	events <- ChatEvent{Event: EventError, ID: id, Message: err.Error()}
}
