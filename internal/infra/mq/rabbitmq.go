package mq

import (
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/example/canteen/internal/config"
)

var (
	conn *amqp.Connection
	once sync.Once
)

// Init 初始化 RabbitMQ 连接，承载跨进程的事件广播。name 用于在管理台区分 web / admin 进程
func Init(cfg *config.RabbitMQConfig, name string) *amqp.Connection {
	once.Do(func() {
		c, err := amqp.DialConfig(cfg.URL, dialConfig(cfg, name))
		if err != nil {
			zap.L().Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		zap.L().Info("rabbitmq connected", zap.String("exchange", cfg.Exchange), zap.String("name", name))
		conn = c
	})
	return conn
}

func dialConfig(cfg *config.RabbitMQConfig, name string) amqp.Config {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName("canteen-" + name)
	return amqp.Config{
		Heartbeat:  cfg.Heartbeat,
		Locale:     "en_US",
		Properties: props,
	}
}

// Declarer 声明交换机与队列所需的通道能力，*amqp.Channel 满足
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareEvents 声明事件广播用的持久化 fanout 交换机
func DeclareEvents(ch Declarer, exchange string) error {
	return ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil)
}

// BindEventQueue 为当前节点声明匿名、独占、自动删除的队列并绑定到交换机。
// 节点下线即丢弃，事件不做持久化
func BindEventQueue(ch Declarer, exchange string) (string, error) {
	if err := DeclareEvents(ch, exchange); err != nil {
		return "", err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", err
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return "", err
	}
	return q.Name, nil
}

// Conn 获取 MQ 连接
func Conn() *amqp.Connection {
	return conn
}

// Close 关闭连接，进程退出时调用
func Close() {
	if conn != nil && !conn.IsClosed() {
		if err := conn.Close(); err != nil {
			zap.L().Warn("close rabbitmq", zap.Error(err))
		}
	}
}
