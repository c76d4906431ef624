package notify

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/example/canteen/internal/infra/mq"
)

// amqpPublisher *amqp.Channel 的发布能力
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// MQPublisher 把事件写入 fanout 交换机，供其它进程（web 节点）转发给在线连接
type MQPublisher struct {
	mu       sync.Mutex
	ch       amqpPublisher
	exchange string
}

// NewMQPublisher 打开通道并声明交换机
func NewMQPublisher(conn *amqp.Connection, exchange string) (*MQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := mq.DeclareEvents(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &MQPublisher{ch: ch, exchange: exchange}, nil
}

func (p *MQPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	// amqp Channel 不支持并发发布
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    ev.At,
		Type:         ev.Name,
		Body:         body,
	})
}

// Relay 从交换机消费事件并交给本地 Publisher（通常是 WSPublisher）
type Relay struct {
	conn     *amqp.Connection
	exchange string
	target   Publisher
}

func NewRelay(conn *amqp.Connection, exchange string, target Publisher) *Relay {
	return &Relay{conn: conn, exchange: exchange, target: target}
}

// Run 声明独占队列并绑定交换机，断开时返回错误
func (r *Relay) Run(ctx context.Context) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	queue, err := mq.BindEventQueue(ch, r.exchange)
	if err != nil {
		return err
	}
	deliveries, err := ch.Consume(queue, "", true, true, false, false, nil)
	if err != nil {
		return err
	}
	zap.L().Info("event relay started", zap.String("exchange", r.exchange), zap.String("queue", queue))
	return r.consume(ctx, deliveries)
}

func (r *Relay) consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			var ev Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				zap.L().Warn("relay: invalid event", zap.Error(err))
				continue
			}
			if err := r.target.Publish(ctx, ev); err != nil {
				zap.L().Warn("relay: publish failed", zap.String("event", ev.Name), zap.Error(err))
			}
		}
	}
}
