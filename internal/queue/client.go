// Package queue 實作完成批次的Redis佇列
// API伺服器在完成機台時入列，sink worker出列後寫入持久層；
// 批次順序不需要跨會話全域序列化
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/intenza/hfeval/internal/config"
	"github.com/intenza/hfeval/internal/model"
)

// 佇列鍵名
const (
	batchQueueKey  = "queue:batches"
	batchKeyPrefix = "batch:"
	batchTTL       = 24 * time.Hour
	dequeueTimeout = 5 * time.Second
)

// Client 批次佇列介面
type Client interface {
	EnqueueBatch(ctx context.Context, batch *model.RecordBatch) error
	DequeueBatch(ctx context.Context) (*model.RecordBatch, error)
	MarkDelivered(ctx context.Context, batchID string) error
	PendingCount(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

type redisClient struct {
	client *redis.Client
}

// NewRedisQueue 建立Redis批次佇列
func NewRedisQueue(qcfg config.QueueConfig) (Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     qcfg.Addr,
		Password: qcfg.Password,
		DB:       qcfg.DB,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("連線Redis失敗: %w", err)
	}

	return &redisClient{client: rdb}, nil
}

// EnqueueBatch 入列一批記錄
// 批次內容以JSON存於獨立鍵，佇列本身只放批次ID
func (c *redisClient) EnqueueBatch(ctx context.Context, batch *model.RecordBatch) error {
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("序列化批次失敗: %w", err)
	}

	batchKey := batchKeyPrefix + batch.BatchID
	if err := c.client.Set(ctx, batchKey, batchJSON, batchTTL).Err(); err != nil {
		return fmt.Errorf("保存批次失敗: %w", err)
	}

	if err := c.client.LPush(ctx, batchQueueKey, batch.BatchID).Err(); err != nil {
		return fmt.Errorf("批次入列失敗: %w", err)
	}

	return nil
}

// DequeueBatch 阻塞式出列，逾時無批次時回傳nil
func (c *redisClient) DequeueBatch(ctx context.Context) (*model.RecordBatch, error) {
	result, err := c.client.BRPop(ctx, dequeueTimeout, batchQueueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 佇列為空
		}
		return nil, fmt.Errorf("批次出列失敗: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("非預期的Redis回傳格式")
	}

	batchID := result[1]
	batchJSON, err := c.client.Get(ctx, batchKeyPrefix+batchID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("批次內容已不存在: %s", batchID)
		}
		return nil, fmt.Errorf("取得批次內容失敗: %w", err)
	}

	var batch model.RecordBatch
	if err := json.Unmarshal([]byte(batchJSON), &batch); err != nil {
		return nil, fmt.Errorf("反序列化批次失敗: %w", err)
	}

	return &batch, nil
}

// MarkDelivered 批次成功寫入持久層後清除內容鍵
func (c *redisClient) MarkDelivered(ctx context.Context, batchID string) error {
	if err := c.client.Del(ctx, batchKeyPrefix+batchID).Err(); err != nil {
		return fmt.Errorf("清除批次鍵失敗: %w", err)
	}
	return nil
}

// PendingCount 目前待處理批次數
func (c *redisClient) PendingCount(ctx context.Context) (int64, error) {
	count, err := c.client.LLen(ctx, batchQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("取得佇列長度失敗: %w", err)
	}
	return count, nil
}

// Ping 測試連線
func (c *redisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 關閉連線
func (c *redisClient) Close() {
	c.client.Close()
}
