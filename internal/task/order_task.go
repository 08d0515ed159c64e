package task

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"cj_dropship_v1/internal/service"
)

// OrderTask 定时订单转发
type OrderTask struct {
	orderService service.OrderService
	Cron         *cron.Cron

	running atomic.Bool

	spec    string
	timeout time.Duration
}

func NewOrderTask(orderService service.OrderService, spec string) *OrderTask {
	if spec == "" {
		spec = "0 */15 * * * *" // 每 15 分钟一轮
	}
	return &OrderTask{
		orderService: orderService,
		Cron:         cron.New(cron.WithSeconds()),
		spec:         spec,
		timeout:      10 * time.Minute,
	}
}

// Start 启动定时任务
func (t *OrderTask) Start() {
	_, err := t.Cron.AddFunc(t.spec, func() {
		t.runOnce()
	})
	if err != nil {
		log.Fatalf("无法启动订单转发任务: %v", err)
	}

	t.Cron.Start()
	log.Printf("订单转发任务已启动 (spec=%s)", t.spec)
}

// Stop 停止定时任务
func (t *OrderTask) Stop() {
	t.Cron.Stop()
}

func (t *OrderTask) runOnce() {
	if !t.running.CompareAndSwap(false, true) {
		log.Println("[Cron] 上一轮订单转发尚未结束，本轮跳过")
		return
	}
	defer t.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	report, err := t.orderService.ProcessPending(ctx)
	if err != nil {
		log.Printf("[Cron] 订单转发失败: %v", err)
		return
	}
	if report.Scanned > 0 {
		log.Printf("[Cron] 订单转发完成 forwarded=%d failed=%d", report.Forwarded, report.Failed)
	}
}
