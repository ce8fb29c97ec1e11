package mongodb

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// tokenByteLength 연결 토큰의 난수 길이입니다. (16바이트 = 32자리 16진수)
const tokenByteLength = 16

// LinkTokenStore 채널 연결을 위한 일회용 토큰 저장소입니다.
// 토큰은 TTL 인덱스에 의해 발급 15분 후 만료됩니다.
type LinkTokenStore struct {
	col *mongo.Collection
}

// Mint 지정된 사용자와 채널에 대한 일회용 연결 토큰을 발급합니다.
func (s *LinkTokenStore) Mint(ctx context.Context, userID string, channel model.Channel) (model.LinkToken, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return model.LinkToken{}, apperrors.Wrap(err, apperrors.Internal, "연결 토큰 난수 생성에 실패하였습니다")
	}

	token := model.LinkToken{
		Token:     hex.EncodeToString(buf),
		UserID:    userID,
		Channel:   channel,
		CreatedAt: time.Now(),
	}

	if _, err := s.col.InsertOne(ctx, token); err != nil {
		return model.LinkToken{}, apperrors.Wrap(err, apperrors.System, "연결 토큰 발급에 실패하였습니다")
	}
	return token, nil
}

// Consume 토큰을 소비합니다. 원자적 삭제로 일회성이 보장되며,
// 존재하지 않거나 이미 사용된(또는 만료된) 토큰은 NotFound 에러를 반환합니다.
func (s *LinkTokenStore) Consume(ctx context.Context, token string) (model.LinkToken, error) {
	var consumed model.LinkToken
	err := s.col.FindOneAndDelete(ctx, bson.M{"_id": token}).Decode(&consumed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.LinkToken{}, apperrors.New(apperrors.NotFound, "유효하지 않거나 이미 사용된 연결 토큰입니다")
		}
		return model.LinkToken{}, apperrors.Wrap(err, apperrors.System, "연결 토큰 소비에 실패하였습니다")
	}
	return consumed, nil
}
