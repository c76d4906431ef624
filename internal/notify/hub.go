package notify

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Publisher 把事件投递给某一类下游（websocket、MQ……）
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Emitter 业务层只依赖这个接口：提交成功后调用，绝不阻塞
type Emitter interface {
	Emit(ev Event)
}

// Hub 事件扇出：Emit 写入有界队列，Run 在单独的 goroutine 中逐个投递。
// 队列满时丢弃，投递失败只记日志，不影响已提交的业务结果。
type Hub struct {
	queue      chan Event
	publishers []Publisher
	timeout    time.Duration

	emitted   atomic.Int64
	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewHub 创建事件中心
func NewHub(buffer int, publishers ...Publisher) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		queue:      make(chan Event, buffer),
		publishers: publishers,
		timeout:    3 * time.Second,
	}
}

// Emit 非阻塞入队
func (h *Hub) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case h.queue <- ev:
		h.emitted.Add(1)
	default:
		h.dropped.Add(1)
		zap.L().Warn("fanout queue full, event dropped",
			zap.String("event", ev.Name),
			zap.Int64("order_id", ev.OrderID))
	}
}

// Run 持续投递直到 ctx 结束
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-h.queue:
			h.dispatch(ctx, ev)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev Event) {
	for _, p := range h.publishers {
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := p.Publish(pctx, ev)
		cancel()
		if err != nil {
			h.failed.Add(1)
			zap.L().Warn("fanout publish failed",
				zap.String("event", ev.Name),
				zap.Int64("order_id", ev.OrderID),
				zap.Error(err))
			continue
		}
		h.delivered.Add(1)
	}
}

// Stats 扇出统计
type Stats struct {
	Emitted   int64 `json:"emitted"`
	Dropped   int64 `json:"dropped"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

func (h *Hub) Stats() Stats {
	return Stats{
		Emitted:   h.emitted.Load(),
		Dropped:   h.dropped.Load(),
		Delivered: h.delivered.Load(),
		Failed:    h.failed.Load(),
	}
}
