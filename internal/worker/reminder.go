package worker

import (
	"context"
	"time"

	"gorm.io/gorm"

	"wellmind-go/internal/repository"
	"wellmind-go/pkg/kafka"
	"wellmind-go/pkg/log"
	"wellmind-go/pkg/tasks"
)

// ReminderScanner 周期性扫描到期的待触发提醒，
// 标记为已发送并向通知主题发布 reminder.due 事件。
type ReminderScanner struct {
	db           *gorm.DB
	reminderRepo repository.ReminderRepository
	interval     time.Duration
}

// NewReminderScanner 创建一个新的 ReminderScanner 实例。
func NewReminderScanner(db *gorm.DB, reminderRepo repository.ReminderRepository, intervalSeconds int) *ReminderScanner {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	return &ReminderScanner{
		db:           db,
		reminderRepo: reminderRepo,
		interval:     time.Duration(intervalSeconds) * time.Second,
	}
}

// Run 阻塞运行扫描循环，ctx 取消后返回。
func (s *ReminderScanner) Run(ctx context.Context) {
	log.Infof("[ReminderScanner] 扫描任务已启动, 间隔: %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[ReminderScanner] 收到退出信号, 停止扫描")
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// scan 处理一批到期提醒。先落库再发事件，事件失败只告警，
// 下游以 reminder_id 幂等消费。
func (s *ReminderScanner) scan(ctx context.Context) {
	db := s.db.WithContext(ctx)

	due, err := s.reminderRepo.DuePending(db, time.Now())
	if err != nil {
		log.Errorf("[ReminderScanner] 查询到期提醒失败: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Infof("[ReminderScanner] 发现 %d 条到期提醒", len(due))

	for i := range due {
		reminder := &due[i]
		if err := s.reminderRepo.MarkSent(db, reminder.ID); err != nil {
			log.Errorf("[ReminderScanner] 标记提醒 %s 已发送失败: %v", reminder.ID, err)
			continue
		}
		if err := kafka.ProduceNotification(tasks.NotificationEvent{
			Type:       tasks.EventReminderDue,
			UserID:     reminder.UserID,
			ReminderID: reminder.ID,
			Message:    reminder.Message,
			RemindAt:   reminder.RemindAt,
		}); err != nil {
			log.Warnf("[ReminderScanner] 提醒到期事件发布失败: %v", err)
		}
	}
}
