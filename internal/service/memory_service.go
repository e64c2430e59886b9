// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"gorm.io/gorm"

	"wellmind-go/internal/config"
	"wellmind-go/internal/model"
	"wellmind-go/internal/repository"
	"wellmind-go/pkg/embedding"
	"wellmind-go/pkg/llm"
	"wellmind-go/pkg/log"
)

// 记忆检索的固定回复文本。
const (
	// NoMemoryResult 无历史或零命中时的哨兵回复
	NoMemoryResult = "No relevant conversation history found."
	// MemoryFallbackSummary 综述模型失败时的兜底文本
	MemoryFallbackSummary = "Relevant past conversations were found, but a summary could not be generated."
)

// MemoryService 在用户的历史消息上做语义检索并产出一段综述文本。
type MemoryService interface {
	Search(ctx context.Context, userID uint, query string) (string, error)
}

type memoryService struct {
	db              *gorm.DB
	chatRepo        repository.ChatRepository
	embeddingClient embedding.Client
	llmClient       llm.Client
	summaryModel    string
	maxResults      int
	contextWindow   int
}

// NewMemoryService 创建一个新的 MemoryService 实例。
func NewMemoryService(db *gorm.DB, chatRepo repository.ChatRepository, embeddingClient embedding.Client, llmClient llm.Client, cfg config.Config) MemoryService {
	return &memoryService{
		db:              db,
		chatRepo:        chatRepo,
		embeddingClient: embeddingClient,
		llmClient:       llmClient,
		summaryModel:    cfg.LLM.SummaryModel,
		maxResults:      cfg.Memory.MaxResults,
		contextWindow:   cfg.Memory.ContextWindow,
	}
}

// Search 执行一次语义记忆检索。
// 流程：向量化查询 → 余弦相似度排序取 top-N → 每条命中前后各取
// contextWindow 条消息拼出局部上下文 → 按消息 ID 去重（首次出现者保留）
// → 按时间升序合并 → 交给小模型综述。综述失败时退回固定兜底文本。
func (s *memoryService) Search(ctx context.Context, userID uint, query string) (string, error) {
	db := s.db.WithContext(ctx)

	chat, err := s.chatRepo.FindChatByUser(db, userID)
	if err == gorm.ErrRecordNotFound {
		return NoMemoryResult, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve chat: %w", err)
	}

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.rank(db, userID, queryVector)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return NoMemoryResult, nil
	}

	merged, err := s.expandContext(db, chat.ID, hits)
	if err != nil {
		return "", err
	}

	summary := s.summarize(ctx, query, merged)
	return fmt.Sprintf("Memory search results for %q:\n%s", query, summary), nil
}

// rank 对用户全部已向量化的消息按相似度排序，取前 maxResults 条。
// similarity = 1 - cosineDistance；并列时保持存储顺序。
func (s *memoryService) rank(db *gorm.DB, userID uint, queryVector []float32) ([]model.Message, error) {
	candidates, err := s.chatRepo.MessagesWithEmbedding(db, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	type scored struct {
		msg        model.Message
		similarity float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, msg := range candidates {
		if len(msg.Embedding) != len(queryVector) {
			// 模型维度变更遗留的旧向量，跳过
			continue
		}
		ranked = append(ranked, scored{msg: msg, similarity: cosineSimilarity(queryVector, msg.Embedding)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})

	limit := s.maxResults
	if limit > len(ranked) {
		limit = len(ranked)
	}
	hits := make([]model.Message, 0, limit)
	for _, sc := range ranked[:limit] {
		hits = append(hits, sc.msg)
	}
	return hits, nil
}

// expandContext 为每条命中取前后各 contextWindow 条消息，
// 去重后按时间升序返回整体上下文。
func (s *memoryService) expandContext(db *gorm.DB, chatID string, hits []model.Message) ([]model.Message, error) {
	seen := make(map[string]struct{})
	var merged []model.Message

	appendUnique := func(msgs ...model.Message) {
		for _, m := range msgs {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
	}

	for _, hit := range hits {
		// 每条命中前后各一次独立查询，保持可预测的窗口语义
		before, err := s.chatRepo.MessagesBefore(db, chatID, hit.CreatedAt, s.contextWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to load context before hit: %w", err)
		}
		after, err := s.chatRepo.MessagesAfter(db, chatID, hit.CreatedAt, s.contextWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to load context after hit: %w", err)
		}
		appendUnique(before...)
		appendUnique(hit)
		appendUnique(after...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged, nil
}

// summarize 请小模型把上下文综述为一段自然语言；失败时返回兜底文本。
func (s *memoryService) summarize(ctx context.Context, query string, messages []model.Message) string {
	var transcript strings.Builder
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		transcript.WriteString(fmt.Sprintf("[%s] %s: %s\n",
			msg.CreatedAt.Format("2006-01-02 15:04"), msg.Role, msg.Content))
	}

	summary, err := s.llmClient.CreateChatCompletion(ctx, llm.ChatRequest{
		Model: s.summaryModel,
		Messages: []llm.Message{
			{
				Role: "system",
				Content: "You summarize excerpts from a user's past wellness coaching conversations. " +
					"Answer the search query concisely based only on the excerpts.",
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Search query: %s\n\nExcerpts:\n%s", query, transcript.String()),
			},
		},
	})
	if err != nil {
		log.Warnf("[MemoryService] 综述生成失败: %v", err)
		return MemoryFallbackSummary
	}
	return summary
}

// cosineSimilarity 计算两个向量的余弦相似度（等价于 1 - 余弦距离）。
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
