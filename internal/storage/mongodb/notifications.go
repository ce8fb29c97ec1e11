package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// NotificationStore 알림 발송 감사(Audit) 레코드 저장소입니다.
// 레코드는 TTL 인덱스에 의해 생성 30일 후 만료됩니다.
type NotificationStore struct {
	col *mongo.Collection
}

// Insert 알림 발송 감사 레코드를 기록합니다.
//
// 감사 기록 실패는 알림 전송 자체를 실패시키지 않도록 호출자가 로그만 남기고 넘어갈 수 있지만,
// 판단은 호출자의 몫이므로 여기서는 에러를 그대로 반환합니다.
func (s *NotificationStore) Insert(ctx context.Context, notification model.Notification) error {
	if _, err := s.col.InsertOne(ctx, notification); err != nil {
		return apperrors.Wrapf(err, apperrors.System, "알림 감사 레코드 기록에 실패하였습니다 (사용자:%s)", notification.UserID)
	}
	return nil
}
