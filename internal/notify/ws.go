package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kataras/iris/v12/websocket"
	"github.com/kataras/neffos"
	"go.uber.org/zap"

	"github.com/example/canteen/internal/auth"
)

// Namespace websocket 命名空间
const Namespace = "canteen"

// Broadcaster neffos Server 的广播能力
type Broadcaster interface {
	Broadcast(exceptSender fmt.Stringer, msgs ...websocket.Message)
}

// WSPublisher 把事件按受众房间广播给当前在线的连接，不保留历史
type WSPublisher struct {
	server Broadcaster
}

func NewWSPublisher(server Broadcaster) *WSPublisher {
	return &WSPublisher{server: server}
}

func (p *WSPublisher) Publish(_ context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msgs := make([]websocket.Message, 0, len(ev.Audiences))
	seen := make(map[string]bool, len(ev.Audiences))
	for _, a := range ev.Audiences {
		room := a.Room()
		if room == "" || seen[room] {
			continue
		}
		seen[room] = true
		msgs = append(msgs, websocket.Message{
			Namespace: Namespace,
			Room:      room,
			Event:     WireName(ev.Name),
			Body:      body,
		})
	}
	if len(msgs) > 0 {
		p.server.Broadcast(nil, msgs...)
	}
	return nil
}

// TokenVerifier 校验客户端 auth 事件里的 token
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// NewWSServer 构建 websocket 服务：客户端连上后发送 auth(token)，
// 校验通过即加入 all、自己的 customer 房间以及角色房间。
func NewWSServer(verifier TokenVerifier) *neffos.Server {
	return websocket.New(websocket.DefaultGorillaUpgrader, websocket.Namespaces{
		Namespace: websocket.Events{
			"auth": func(nsConn *websocket.NSConn, msg websocket.Message) error {
				claims, err := verifier.Verify(context.Background(), string(msg.Body))
				if err != nil {
					return fmt.Errorf("unauthorized")
				}
				for _, room := range RoomsFor(claims.Role, claims.UserID) {
					if _, err := nsConn.JoinRoom(context.Background(), room); err != nil {
						zap.L().Warn("ws join room failed", zap.String("room", room), zap.Error(err))
						return err
					}
				}
				zap.L().Debug("ws client joined",
					zap.Int64("user_id", claims.UserID),
					zap.String("role", string(claims.Role)))
				return nil
			},
		},
	})
}
