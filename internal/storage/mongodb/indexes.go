package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// 데이터 보존 기간 (TTL 인덱스, 초 단위)
const (
	resultTTLSeconds       = int32(24 * 60 * 60)      // 수집 결과: 24시간
	notificationTTLSeconds = int32(30 * 24 * 60 * 60) // 알림 감사: 30일
	linkTokenTTLSeconds    = int32(15 * 60)           // 연결 토큰: 15분
)

// ensureIndexes 기동 시 필요한 모든 인덱스를 생성합니다. 이미 존재하는 인덱스는 무시됩니다.
func (c *Client) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collProductResults: {
			{
				// 유일성 키: 같은 시간 버킷 내의 관측은 서로 덮어쓴다.
				Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "shop_id", Value: 1}, {Key: "hour_bucket", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(resultTTLSeconds),
			},
		},
		collWatchEntries: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "is_active", Value: 1}},
			},
		},
		collNotificationTargets: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "channel", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		collNotifications: {
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(notificationTTLSeconds),
			},
		},
		collLinkTokens: {
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(linkTokenTTLSeconds),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := c.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return apperrors.Wrapf(err, apperrors.System, "컬렉션(%s)의 인덱스 생성에 실패하였습니다", collection)
		}
	}

	return nil
}
