// Package worker 包含后台异步任务的执行器。
package worker

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"wellmind-go/internal/repository"
	"wellmind-go/pkg/embedding"
	"wellmind-go/pkg/log"
)

// embeddingTask 是一条待向量化的消息。
type embeddingTask struct {
	MessageID string
	Content   string
}

// EmbeddingWorker 在后台为消息生成向量。
// 队列有界，入队永不阻塞调用方；队列满时任务被丢弃，
// 丢弃的消息会在下次启动时由 Backfill 补齐。
type EmbeddingWorker struct {
	db              *gorm.DB
	chatRepo        repository.ChatRepository
	embeddingClient embedding.Client

	queue chan embeddingTask
	wg    sync.WaitGroup
}

// NewEmbeddingWorker 创建一个新的 EmbeddingWorker 实例。
func NewEmbeddingWorker(db *gorm.DB, chatRepo repository.ChatRepository, embeddingClient embedding.Client, queueSize int) *EmbeddingWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &EmbeddingWorker{
		db:              db,
		chatRepo:        chatRepo,
		embeddingClient: embeddingClient,
		queue:           make(chan embeddingTask, queueSize),
	}
}

// Start 启动消费协程，ctx 取消后协程退出。
func (w *EmbeddingWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		log.Info("[EmbeddingWorker] 后台向量化协程已启动")
		for {
			select {
			case <-ctx.Done():
				log.Info("[EmbeddingWorker] 收到退出信号, 停止消费")
				return
			case task := <-w.queue:
				w.process(ctx, task)
			}
		}
	}()
}

// Wait 等待消费协程退出。
func (w *EmbeddingWorker) Wait() {
	w.wg.Wait()
}

// Enqueue 把消息交给后台队列。队列满时丢弃并告警，不阻塞调用方。
func (w *EmbeddingWorker) Enqueue(messageID, content string) {
	if content == "" {
		return
	}
	select {
	case w.queue <- embeddingTask{MessageID: messageID, Content: content}:
	default:
		log.Warnf("[EmbeddingWorker] 队列已满, 丢弃消息 %s 的向量化任务", messageID)
	}
}

// process 为单条消息生成并写回向量。失败只记录日志，消息本身不受影响。
func (w *EmbeddingWorker) process(ctx context.Context, task embeddingTask) {
	vector, err := w.embeddingClient.CreateEmbedding(ctx, task.Content)
	if err != nil {
		log.Errorf("[EmbeddingWorker] 消息 %s 向量化失败: %v", task.MessageID, err)
		return
	}
	if err := w.chatRepo.UpdateEmbedding(w.db.WithContext(ctx), task.MessageID, vector); err != nil {
		log.Errorf("[EmbeddingWorker] 消息 %s 向量写回失败: %v", task.MessageID, err)
		return
	}
	log.Debugf("[EmbeddingWorker] 消息 %s 向量化完成, 维度: %d", task.MessageID, len(vector))
}

// Backfill 扫描所有缺失向量的消息并逐条补齐。
// 在启动时调用一次，按时间升序逐条处理以控制对嵌入服务的压力。
func (w *EmbeddingWorker) Backfill(ctx context.Context) {
	messages, err := w.chatRepo.MessagesMissingEmbedding(w.db.WithContext(ctx), 0)
	if err != nil {
		log.Errorf("[EmbeddingWorker] 扫描缺失向量的消息失败: %v", err)
		return
	}
	if len(messages) == 0 {
		return
	}
	log.Infof("[EmbeddingWorker] 开始补齐 %d 条消息的向量", len(messages))
	for i := range messages {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if messages[i].Content == "" {
			continue
		}
		w.process(ctx, embeddingTask{MessageID: messages[i].ID, Content: messages[i].Content})
	}
	log.Info("[EmbeddingWorker] 向量补齐完成")
}
