package notification

import (
	"context"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// TokenConsumer 일회용 채널 연결 토큰의 소비 계약입니다.
type TokenConsumer interface {
	Consume(ctx context.Context, token string) (model.LinkToken, error)
}

// TargetBinder 토큰 소비 결과로 확인된 채널 대상의 등록 계약입니다.
type TargetBinder interface {
	BindTarget(ctx context.Context, target model.NotificationTarget) error
}

// linker 수신된 연결 토큰을 소비하여 채널 대상을 사용자에게 연결합니다.
// 텔레그램(/start <token>)과 디스코드(!link <token>) 수신 루프가 공유합니다.
type linker struct {
	tokens TokenConsumer
	binder TargetBinder
}

// link 토큰을 검증하고 채널 대상을 등록합니다.
// 토큰이 연결하려는 채널과 수신된 채널이 다르면 실패합니다.
func (l *linker) link(ctx context.Context, token string, channel model.Channel, channelTarget string) (model.LinkToken, error) {
	consumed, err := l.tokens.Consume(ctx, token)
	if err != nil {
		return model.LinkToken{}, err
	}

	if consumed.Channel != channel {
		return model.LinkToken{}, apperrors.Newf(apperrors.InvalidInput,
			"연결 토큰의 채널(%s)과 수신 채널(%s)이 일치하지 않습니다", consumed.Channel, channel)
	}

	if err := l.binder.BindTarget(ctx, model.NotificationTarget{
		UserID:        consumed.UserID,
		Channel:       channel,
		ChannelTarget: channelTarget,
	}); err != nil {
		return model.LinkToken{}, err
	}
	return consumed, nil
}
