package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Vector 是消息的语义向量，以 JSON 数组形式存储在数据库中。
// nil 表示向量尚未生成（后台任务异步补齐）。
type Vector []float32

// Value 实现 driver.Valuer。
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner。
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("unsupported vector column type %T", value)
	}
}

// GormDataType 指定列类型。
func (Vector) GormDataType() string {
	return "json"
}
