package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// StateStore (사용자, 상품, 상점) 조합별 알림 상태 저장소입니다.
//
// 상태는 사이클 시작 시 일괄 로드되고 사이클 종료 시 일괄 저장되며,
// 사이클 사이에는 메모리의 상태가 기준(authoritative)입니다.
type StateStore struct {
	col *mongo.Collection
}

// LoadForProducts 지정된 상품들의 알림 상태를 복합 키로 색인하여 조회합니다.
func (s *StateStore) LoadForProducts(ctx context.Context, productIDs []string) (map[string]model.NotificationState, error) {
	if len(productIDs) == 0 {
		return map[string]model.NotificationState{}, nil
	}

	filter := bson.M{"product_id": bson.M{"$in": productIDs}}

	cursor, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "알림 상태 조회에 실패하였습니다")
	}
	defer cursor.Close(ctx)

	var states []model.NotificationState
	if err := cursor.All(ctx, &states); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "알림 상태 디코딩에 실패하였습니다")
	}

	byKey := make(map[string]model.NotificationState, len(states))
	for _, state := range states {
		byKey[state.Key] = state
	}
	return byKey, nil
}

// SaveAll 알림 상태 변경분을 단일 벌크 쓰기로 저장합니다.
func (s *StateStore) SaveAll(ctx context.Context, states []model.NotificationState) error {
	if len(states) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(states))
	for _, state := range states {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": state.Key}).
			SetReplacement(state).
			SetUpsert(true))
	}

	if _, err := s.col.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return apperrors.Wrap(err, apperrors.System, "알림 상태 일괄 저장에 실패하였습니다")
	}
	return nil
}
