package task

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"cj_dropship_v1/internal/service"
)

// InventoryTask 定时库存同步
type InventoryTask struct {
	inventoryService service.InventoryService
	Cron             *cron.Cron

	// 上一轮还没跑完时跳过本轮
	running atomic.Bool

	spec    string
	timeout time.Duration
}

func NewInventoryTask(inventoryService service.InventoryService, spec string) *InventoryTask {
	if spec == "" {
		spec = "0 0 */4 * * *" // 每 4 小时一轮
	}
	return &InventoryTask{
		inventoryService: inventoryService,
		Cron:             cron.New(cron.WithSeconds()),
		spec:             spec,
		timeout:          30 * time.Minute,
	}
}

// Start 启动定时任务
func (t *InventoryTask) Start() {
	_, err := t.Cron.AddFunc(t.spec, func() {
		t.runOnce()
	})
	if err != nil {
		log.Fatalf("无法启动库存同步任务: %v", err)
	}

	t.Cron.Start()
	log.Printf("库存同步任务已启动 (spec=%s)", t.spec)
}

// Stop 停止定时任务
func (t *InventoryTask) Stop() {
	t.Cron.Stop()
}

func (t *InventoryTask) runOnce() {
	if !t.running.CompareAndSwap(false, true) {
		log.Println("[Cron] 上一轮库存同步尚未结束，本轮跳过")
		return
	}
	defer t.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	report, err := t.inventoryService.SyncAll(ctx)
	if err != nil {
		log.Printf("[Cron] 库存同步失败: %v", err)
		return
	}
	log.Printf("[Cron] 库存同步完成 updated=%d failed=%d", report.Updated, report.Failed)
}
