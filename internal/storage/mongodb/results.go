package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// ResultStore 시간 버킷 단위의 상품 수집 결과 저장소입니다.
type ResultStore struct {
	col *mongo.Collection
}

// Upsert 수집 결과를 (product_id, shop_id, hour_bucket) 키로 저장합니다.
// 같은 시간 버킷 내의 나중 관측이 이전 관측을 덮어씁니다.
func (s *ResultStore) Upsert(ctx context.Context, result model.ProductResult) error {
	filter := bson.M{
		"product_id":  result.ProductID,
		"shop_id":     result.ShopID,
		"hour_bucket": result.HourBucket,
	}
	update := bson.M{
		"$set": bson.M{
			"product_url":  result.ProductURL,
			"price":        result.Price,
			"is_available": result.IsAvailable,
			"timestamp":    result.Timestamp,
		},
		// TTL 기준 시각은 버킷 내 첫 관측 시각으로 고정한다.
		"$setOnInsert": bson.M{
			"product_id":  result.ProductID,
			"shop_id":     result.ShopID,
			"hour_bucket": result.HourBucket,
			"created_at":  result.CreatedAt,
		},
	}

	if _, err := s.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return apperrors.Wrapf(err, apperrors.System, "수집 결과 저장에 실패하였습니다 (상품:%s, 상점:%s)", result.ProductID, result.ShopID)
	}
	return nil
}

// BestOfferForProduct 현재 시간 버킷에서 상품의 최저가 판매처를 조회합니다.
// 판매 중이면서 가격이 있는 결과가 없으면 NotFound 에러를 반환합니다.
func (s *ResultStore) BestOfferForProduct(ctx context.Context, productID string, now time.Time) (model.ProductResult, error) {
	offers, err := s.BestOffersForProducts(ctx, []string{productID}, now)
	if err != nil {
		return model.ProductResult{}, err
	}

	offer, ok := offers[productID]
	if !ok {
		return model.ProductResult{}, apperrors.Newf(apperrors.NotFound, "상품(%s)의 현재 시간 버킷에 판매 중인 결과가 없습니다", productID)
	}
	return offer, nil
}

// BestOffersForProducts 현재 시간 버킷에서 각 상품의 최저가 판매처를 단일 질의로 조회합니다.
//
// 판매 중(is_available)이면서 가격이 추출된 결과만 후보가 되며,
// 최저가가 여럿이면 가장 최근에 관측된 결과가 선택됩니다.
// 후보가 없는 상품은 결과 맵에서 빠집니다.
func (s *ResultStore) BestOffersForProducts(ctx context.Context, productIDs []string, now time.Time) (map[string]model.ProductResult, error) {
	if len(productIDs) == 0 {
		return map[string]model.ProductResult{}, nil
	}

	filter := bson.M{
		"product_id":   bson.M{"$in": productIDs},
		"hour_bucket":  model.HourBucket(now),
		"is_available": true,
		"price":        bson.M{"$ne": nil},
	}

	cursor, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "최저가 판매처 조회에 실패하였습니다")
	}
	defer cursor.Close(ctx)

	var rows []model.ProductResult
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "최저가 판매처 결과 디코딩에 실패하였습니다")
	}

	best := make(map[string]model.ProductResult, len(productIDs))
	for _, row := range rows {
		current, ok := best[row.ProductID]
		if !ok || betterOffer(row, current) {
			best[row.ProductID] = row
		}
	}
	return best, nil
}

// betterOffer candidate가 current보다 나은 판매처인지 판정합니다.
// 더 낮은 가격이 우선이고, 가격이 같으면 더 최근의 관측이 우선입니다.
func betterOffer(candidate, current model.ProductResult) bool {
	if candidate.Price == nil {
		return false
	}
	if current.Price == nil {
		return true
	}
	if *candidate.Price != *current.Price {
		return *candidate.Price < *current.Price
	}
	return candidate.Timestamp.After(current.Timestamp)
}
