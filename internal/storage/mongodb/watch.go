package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// WatchStore 사용자 감시 항목과 알림 채널 대상 저장소입니다.
//
// 감시 항목은 외부 워치리스트 서비스에서 관리되며, 본 시스템은 사이클 시작 시점에
// 활성 항목과 알림 대상을 일괄 조회(프리로드)하는 용도로만 사용합니다.
type WatchStore struct {
	db *mongo.Database
}

// ActiveWatchersByProductIDs 지정된 상품들의 활성 감시 항목을 상품 ID로 묶어 조회합니다.
func (s *WatchStore) ActiveWatchersByProductIDs(ctx context.Context, productIDs []string) (map[string][]model.WatchEntry, error) {
	if len(productIDs) == 0 {
		return map[string][]model.WatchEntry{}, nil
	}

	filter := bson.M{
		"product_id": bson.M{"$in": productIDs},
		"is_active":  true,
	}

	cursor, err := s.db.Collection(collWatchEntries).Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "활성 감시 항목 조회에 실패하였습니다")
	}
	defer cursor.Close(ctx)

	var entries []model.WatchEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "감시 항목 디코딩에 실패하였습니다")
	}

	byProduct := make(map[string][]model.WatchEntry)
	for _, entry := range entries {
		byProduct[entry.ProductID] = append(byProduct[entry.ProductID], entry)
	}
	return byProduct, nil
}

// NotificationTargets 지정된 사용자들의 알림 채널 대상을 사용자 ID로 묶어 조회합니다.
// 연결된 채널이 하나도 없는 사용자는 결과 맵에서 빠지며, 알림 대상에서 제외됩니다.
func (s *WatchStore) NotificationTargets(ctx context.Context, userIDs []string) (map[string][]model.NotificationTarget, error) {
	if len(userIDs) == 0 {
		return map[string][]model.NotificationTarget{}, nil
	}

	filter := bson.M{"user_id": bson.M{"$in": userIDs}}

	cursor, err := s.db.Collection(collNotificationTargets).Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "알림 대상 조회에 실패하였습니다")
	}
	defer cursor.Close(ctx)

	var targets []model.NotificationTarget
	if err := cursor.All(ctx, &targets); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "알림 대상 디코딩에 실패하였습니다")
	}

	byUser := make(map[string][]model.NotificationTarget)
	for _, target := range targets {
		byUser[target.UserID] = append(byUser[target.UserID], target)
	}
	return byUser, nil
}

// BindTarget 채널 연결 토큰 소비 결과로 사용자의 알림 채널 대상을 등록(갱신)합니다.
func (s *WatchStore) BindTarget(ctx context.Context, target model.NotificationTarget) error {
	filter := bson.M{"user_id": target.UserID, "channel": target.Channel}
	update := bson.M{"$set": bson.M{"channel_target": target.ChannelTarget}}

	if _, err := s.db.Collection(collNotificationTargets).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return apperrors.Wrapf(err, apperrors.System, "알림 채널 연결에 실패하였습니다 (사용자:%s, 채널:%s)", target.UserID, target.Channel)
	}
	return nil
}
