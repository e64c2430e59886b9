// Package catalog 提供了一个只读的内容目录服务客户端。
// 目录服务维护教练内容与产品条目，本服务仅按 ID 查询并做 Redis 侧缓存。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wellmind-go/internal/config"
	"wellmind-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// Item 是目录服务返回的一个内容条目。
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Client 是目录服务的客户端。
type Client struct {
	baseURL  string
	cacheTTL time.Duration
	http     *http.Client
	rdb      *redis.Client
}

// NewClient 创建一个新的目录客户端实例。rdb 可为 nil，此时不走缓存。
func NewClient(cfg config.CatalogConfig, rdb *redis.Client) *Client {
	ttl := time.Duration(cfg.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		cacheTTL: ttl,
		http:     &http.Client{Timeout: 10 * time.Second},
		rdb:      rdb,
	}
}

// GetItem 按 ID 查询一个目录条目，优先命中 Redis 缓存。
func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	cacheKey := fmt.Sprintf("catalog:item:%s", id)

	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			var item Item
			if err := json.Unmarshal([]byte(cached), &item); err == nil {
				return &item, nil
			}
		} else if err != redis.Nil {
			log.Warnf("[Catalog] 读取缓存失败: %v", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/items/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("创建目录请求失败: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用目录服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("目录服务返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("解析目录响应失败: %w", err)
	}

	if c.rdb != nil {
		if raw, err := json.Marshal(item); err == nil {
			_ = c.rdb.Set(ctx, cacheKey, raw, c.cacheTTL).Err()
		}
	}

	return &item, nil
}
