package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/intenza/hfeval/internal/config"
	"github.com/intenza/hfeval/internal/database"
	"github.com/intenza/hfeval/internal/model"
	"github.com/intenza/hfeval/internal/queue"
	"github.com/intenza/hfeval/internal/report"
	"github.com/intenza/hfeval/internal/storage"
)

// SinkWorker 批次落地Worker
// 從Redis佇列取出完成批次，寫入PostgreSQL並歸檔xlsx副本；
// 投遞失敗時批次重新入列，由佇列提供至少一次投遞
type SinkWorker struct {
	config  *config.Config
	db      database.DatabaseInterface
	queue   queue.Client
	storage storage.StorageInterface
}

func main() {
	// 解析命令列參數
	var configPath string
	if len(os.Args) > 1 && os.Args[1] == "-config" && len(os.Args) > 2 {
		configPath = os.Args[2]
	} else {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("載入配置失敗: %v", err)
	}

	worker, err := NewSinkWorker(cfg)
	if err != nil {
		log.Fatalf("建立Worker失敗: %v", err)
	}

	if err := worker.Start(); err != nil {
		log.Fatalf("啟動Worker失敗: %v", err)
	}
}

// NewSinkWorker 建立Worker並完成依賴初始化
func NewSinkWorker(cfg *config.Config) (*SinkWorker, error) {
	db, err := database.NewPostgreSQLDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("初始化資料庫失敗: %w", err)
	}

	ctx := context.Background()
	if err := db.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("建立資料庫表失敗: %w", err)
	}

	redisQueue, err := queue.NewRedisQueue(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("初始化佇列失敗: %w", err)
	}

	minioStorage, err := storage.NewMinIOStorage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("初始化儲存失敗: %w", err)
	}
	if err := minioStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("確保儲存桶失敗: %w", err)
	}

	return &SinkWorker{
		config:  cfg,
		db:      db,
		queue:   redisQueue,
		storage: minioStorage,
	}, nil
}

// Start 進入消費迴圈直到收到關閉信號
func (w *SinkWorker) Start() error {
	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("收到關閉信號，正在停止Worker...")
		cancel()
	}()

	log.Println("Sink Worker已啟動，等待批次...")

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return nil
		default:
		}

		batch, err := w.queue.DequeueBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.shutdown()
				return nil
			}
			log.Printf("批次出列失敗: %v", err)
			continue
		}
		if batch == nil {
			continue // 逾時無批次
		}

		if err := w.processBatch(ctx, batch); err != nil {
			log.Printf("處理批次失敗 - BatchID: %s, Error: %v", batch.BatchID, err)
			// 重新入列，待下一輪重試
			if err := w.queue.EnqueueBatch(ctx, batch); err != nil {
				log.Printf("批次重新入列失敗 - BatchID: %s, Error: %v", batch.BatchID, err)
			}
			continue
		}

		if err := w.queue.MarkDelivered(ctx, batch.BatchID); err != nil {
			log.Printf("標記批次完成失敗 - BatchID: %s, Error: %v", batch.BatchID, err)
		}
	}
}

// processBatch 持久化一個批次並歸檔xlsx副本
func (w *SinkWorker) processBatch(ctx context.Context, batch *model.RecordBatch) error {
	if err := w.db.AppendBatch(ctx, batch); err != nil {
		return fmt.Errorf("寫入資料庫失敗: %w", err)
	}

	// 歸檔失敗只記錄，不阻擋投遞
	if err := w.archiveBatch(ctx, batch); err != nil {
		log.Printf("歸檔批次副本失敗 - BatchID: %s, Error: %v", batch.BatchID, err)
	}

	log.Printf("批次已落地 - Tester: %s, Machine: %s, Records: %d",
		batch.Tester, batch.MachineCode, len(batch.Records))
	return nil
}

// archiveBatch 將批次記錄以xlsx形式歸檔
func (w *SinkWorker) archiveBatch(ctx context.Context, batch *model.RecordBatch) error {
	var buf bytes.Buffer
	if err := report.WriteRecordsExcel(&buf, batch.Records, report.SheetSession); err != nil {
		return err
	}

	objectName := fmt.Sprintf("batches/%s/%s_%s.xlsx", batch.Tester, batch.MachineCode, batch.BatchID)
	return w.storage.UploadBytes(ctx, objectName, buf.Bytes(), storage.ContentTypeXLSX)
}

// shutdown 關閉全部連線
func (w *SinkWorker) shutdown() {
	if err := w.db.Close(); err != nil {
		log.Printf("關閉資料庫失敗: %v", err)
	}
	w.queue.Close()
	log.Println("Worker已關閉")
}
