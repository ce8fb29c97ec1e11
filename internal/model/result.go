package model

import (
	"time"
)

// hourBucketLayout UTC 기준 시간 버킷의 포맷입니다. (예: "2025-11-02T10")
const hourBucketLayout = "2006-01-02T15"

// HourBucket 주어진 시각을 UTC 기준 시(Hour) 단위로 절삭한 버킷 문자열을 반환합니다.
//
// 동일한 (상품, 상점) 조합에 대해 같은 시간 버킷 내의 관측은 서로 덮어쓰므로,
// 수집 결과의 유일성 키 구성 요소로 사용됩니다.
func HourBucket(t time.Time) string {
	return t.UTC().Truncate(time.Hour).Format(hourBucketLayout)
}

// ProductResult 특정 상점에서 특정 상품을 1회 관측한 결과입니다.
//
// 유일성: (ProductID, ShopID, HourBucket). 같은 시간 버킷 내의 나중 관측이
// ProductURL/Price/IsAvailable/Timestamp를 덮어씁니다.
// CreatedAt 기준 24시간 후 TTL 인덱스에 의해 만료됩니다.
type ProductResult struct {
	ProductID  string `bson:"product_id"`
	ShopID     string `bson:"shop_id"`
	HourBucket string `bson:"hour_bucket"`

	ProductURL  string    `bson:"product_url"`
	Price       *float64  `bson:"price"`
	IsAvailable bool      `bson:"is_available"`
	Timestamp   time.Time `bson:"timestamp"`

	CreatedAt time.Time `bson:"created_at"`
}

// NewProductResult 현재 관측 시각 기준의 ProductResult를 생성합니다.
func NewProductResult(productID, shopID, productURL string, price *float64, isAvailable bool, now time.Time) ProductResult {
	return ProductResult{
		ProductID:   productID,
		ShopID:      shopID,
		HourBucket:  HourBucket(now),
		ProductURL:  productURL,
		Price:       price,
		IsAvailable: isAvailable,
		Timestamp:   now,
		CreatedAt:   now,
	}
}

// UnavailableResult 스크래핑 실패 또는 매칭 실패 시 발행되는 "판매 중 아님" 결과를 생성합니다.
// 실패가 상품의 나머지 처리를 오염시키지 않도록, 에러 대신 이 결과가 파이프라인을 흐릅니다.
func UnavailableResult(productID, shopID string, now time.Time) ProductResult {
	return NewProductResult(productID, shopID, "", nil, false, now)
}
