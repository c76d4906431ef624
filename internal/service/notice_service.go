package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/datamodels/user"
	"github.com/example/canteen/internal/notify"
)

// NoticeRequest 管理员公告，Audience 为 ALL / STUDENT / COOK / ADMIN / CUSTOMER:<用户id>
type NoticeRequest struct {
	Message  string `json:"message" validate:"required,max=500"`
	Audience string `json:"audience"`
}

type NoticeService struct {
	policy  Authorizer
	emitter notify.Emitter
}

func NewNoticeService(policy Authorizer, emitter notify.Emitter) *NoticeService {
	return &NoticeService{policy: policy, emitter: emitter}
}

// Post 推送横幅公告，不落库
func (s *NoticeService) Post(ctx context.Context, actor user.Actor, req NoticeRequest) error {
	if err := authorize(s.policy, actor, auth.ObjNotice, auth.ActPost); err != nil {
		return err
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := validateStruct(req); err != nil {
		return err
	}
	aud, ok := notify.ParseAudience(strings.ToUpper(req.Audience))
	if !ok {
		return invalidInput("未知的公告对象: %q", req.Audience)
	}
	s.emitter.Emit(notify.Event{
		Name:      notify.NoticeBanner,
		Audiences: []notify.Audience{aud},
		UserID:    actor.UserID,
		Message:   req.Message,
	})
	zap.L().Info("notice posted", zap.String("audience", aud.Room()), zap.Int64("by", actor.UserID))
	return nil
}
