package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// CatalogStore 감시 카탈로그(상품, 상품 유형, 세트) 저장소입니다.
//
// 카탈로그는 외부 관리자 플로우에서 생성/수정되며, 본 시스템은 사이클 시작 시점에 읽기만 수행합니다.
type CatalogStore struct {
	db *mongo.Database
}

// ActiveProducts 비활성(disabled) 처리되지 않은 모든 상품을 조회합니다.
func (s *CatalogStore) ActiveProducts(ctx context.Context) ([]model.Product, error) {
	filter := bson.M{"disabled": bson.M{"$ne": true}}

	cursor, err := s.db.Collection(collProducts).Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "상품 카탈로그 조회에 실패하였습니다")
	}
	defer cursor.Close(ctx)

	var products []model.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "상품 카탈로그 디코딩에 실패하였습니다")
	}
	return products, nil
}

// ProductTypes 모든 상품 유형을 ID로 색인하여 조회합니다.
func (s *CatalogStore) ProductTypes(ctx context.Context) (map[string]model.ProductType, error) {
	cursor, err := s.db.Collection(collProductTypes).Find(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "상품 유형 조회에 실패하였습니다")
	}
	defer cursor.Close(ctx)

	var types []model.ProductType
	if err := cursor.All(ctx, &types); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "상품 유형 디코딩에 실패하였습니다")
	}

	byID := make(map[string]model.ProductType, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}
	return byID, nil
}

// ProductSets 모든 세트를 ID로 색인하여 조회합니다.
func (s *CatalogStore) ProductSets(ctx context.Context) (map[string]model.ProductSet, error) {
	cursor, err := s.db.Collection(collProductSets).Find(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "세트 조회에 실패하였습니다")
	}
	defer cursor.Close(ctx)

	var sets []model.ProductSet
	if err := cursor.All(ctx, &sets); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "세트 디코딩에 실패하였습니다")
	}

	byID := make(map[string]model.ProductSet, len(sets))
	for _, set := range sets {
		byID[set.ID] = set
	}
	return byID, nil
}
