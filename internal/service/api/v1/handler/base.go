// Package handler v1 API의 요청 핸들러를 제공합니다.
package handler

import (
	"context"
	"time"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
	"github.com/labstack/echo/v4"
)

const componentHandler = "api.v1.handler"

// OfferReader 상품의 현재 최저가 제안을 조회합니다.
type OfferReader interface {
	BestOfferForProduct(ctx context.Context, productID string, now time.Time) (model.ProductResult, error)
}

// TokenMinter 채널 연결용 일회용 토큰을 발급합니다.
type TokenMinter interface {
	Mint(ctx context.Context, userID string, channel model.Channel) (model.LinkToken, error)
}

// Handler v1 API 엔드포인트의 요청을 처리합니다.
type Handler struct {
	offers OfferReader
	tokens TokenMinter
}

// NewHandler Handler 인스턴스를 생성합니다.
func NewHandler(offers OfferReader, tokens TokenMinter) *Handler {
	if offers == nil {
		panic("OfferReader는 필수입니다")
	}
	if tokens == nil {
		panic("TokenMinter는 필수입니다")
	}

	return &Handler{
		offers: offers,
		tokens: tokens,
	}
}

// log 공통 로깅 필드가 설정된 로거 엔트리를 반환합니다.
func (h *Handler) log(c echo.Context) *applog.Entry {
	return applog.WithComponentAndFields(componentHandler, applog.Fields{
		"endpoint": c.Path(),
	})
}
