package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"wellmind-go/pkg/llm"
)

// 消息角色枚举。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Chat 对应于数据库中的 'chats' 表，表示一个用户的对话线程。
// 当前设计下每个用户只有一个会话，但按 1:N 建模以便扩展。
type Chat struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID uint   `gorm:"index;not null" json:"userId"`
	// WellnessPlan 当前的健康计划文本，由 edit_wellness_plan 工具修改
	WellnessPlan string    `gorm:"type:text;not null;default:''" json:"wellnessPlan"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chat) TableName() string {
	return "chats"
}

// Message 对应于数据库中的 'messages' 表。创建后不可变；
// Embedding 由后台任务异步补齐，是唯一允许的后置更新。
type Message struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChatID string `gorm:"type:varchar(36);index;not null" json:"chatId"`
	UserID uint   `gorm:"index;not null" json:"userId"`
	Role   string `gorm:"type:varchar(16);not null" json:"role"`
	// Content 存储层不允许 NULL，空串合法
	Content string `gorm:"type:text;not null" json:"content"`
	// ToolData 工具相关的结构化负载：assistant 消息携带 toolCalls，
	// tool 消息携带 toolCallId/toolName
	ToolData  datatypes.JSON `gorm:"type:json" json:"toolData,omitempty"`
	Embedding Vector         `gorm:"type:json" json:"-"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "messages"
}

// ToolData 是 Message.ToolData 列的 JSON 结构。
type ToolData struct {
	// ToolCalls 仅出现在发起工具调用的 assistant 消息上
	ToolCalls []llm.ToolCall `json:"toolCalls,omitempty"`
	// ToolCallID/ToolName 仅出现在上报工具结果的 tool 消息上
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
}

// EncodeToolData 将结构化负载编码为 JSON 列值。
func EncodeToolData(td ToolData) (datatypes.JSON, error) {
	raw, err := json.Marshal(td)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeToolData 解析消息上的 JSON 负载；列为空时返回零值。
func (m *Message) DecodeToolData() (ToolData, error) {
	var td ToolData
	if len(m.ToolData) == 0 {
		return td, nil
	}
	err := json.Unmarshal(m.ToolData, &td)
	return td, err
}
