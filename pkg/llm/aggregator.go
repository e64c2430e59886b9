package llm

import (
	"sort"
	"strings"
)

// Aggregator 逐条吸收流式 delta，增量重建完整文本与工具调用集合。
// 纯内存累加器，不做任何 I/O。
type Aggregator struct {
	role    string
	content strings.Builder
	calls   map[int]*ToolCall
}

// NewAggregator 创建一个空的累加器。
func NewAggregator() *Aggregator {
	return &Aggregator{calls: make(map[int]*ToolCall)}
}

// Add 吸收一条 delta。
// 文本按到达顺序追加（包括空串）；工具调用按 Index 归属：
// 首次出现的 Index 新建一条记录，后续分片把 Arguments 文本拼接到该记录上。
// Role 一旦出现即保留，后续不再覆盖。
func (a *Aggregator) Add(d *Delta) {
	if d == nil {
		return
	}
	if a.role == "" && d.Role != "" {
		a.role = d.Role
	}
	a.content.WriteString(d.Content)

	for _, tc := range d.ToolCalls {
		call, ok := a.calls[tc.Index]
		if !ok {
			call = &ToolCall{}
			a.calls[tc.Index] = call
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Type != "" {
			call.Type = tc.Type
		}
		if tc.Function.Name != "" {
			call.Function.Name = tc.Function.Name
		}
		call.Function.Arguments += tc.Function.Arguments
	}
}

// Role 返回本轮观察到的角色，未出现过时为空串。
func (a *Aggregator) Role() string {
	return a.role
}

// Content 返回到目前为止重建的完整文本。
func (a *Aggregator) Content() string {
	return a.content.String()
}

// HasToolCalls 报告是否累积了任何工具调用。
func (a *Aggregator) HasToolCalls() bool {
	return len(a.calls) > 0
}

// ToolCalls 返回重建的工具调用，按 delta 中的 Index 升序排列，
// 与模型声明的调用顺序一致。
func (a *Aggregator) ToolCalls() []ToolCall {
	indexes := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		calls = append(calls, *a.calls[idx])
	}
	return calls
}
