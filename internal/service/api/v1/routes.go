// Package v1 운영 API의 v1 버전 라우트를 정의하고 설정합니다.
//
// 이 패키지는 /api/v1 경로 하위의 모든 엔드포인트를 관리합니다.
//
// 주요 엔드포인트:
//   - GET  /api/v1/products/:productId/best-offer - 상품의 현재 최저가 제안 조회
//   - POST /api/v1/link-tokens                    - 알림 채널 연결 토큰 발급
//
// 모든 엔드포인트는 App Key 인증을 요구합니다.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/darkkaiser/cardwatch-server/internal/service/api/middleware"
	"github.com/darkkaiser/cardwatch-server/internal/service/api/v1/handler"
)

// RegisterRoutes Echo 인스턴스에 v1 API 라우트를 설정합니다.
func RegisterRoutes(e *echo.Echo, h *handler.Handler, appKey string) {
	v1Group := e.Group("/api/v1")

	authMiddleware := middleware.RequireAppKey(appKey)

	v1Group.GET("/products/:productId/best-offer", h.BestOfferHandler, authMiddleware)
	v1Group.POST("/link-tokens", h.MintLinkTokenHandler, authMiddleware)
}
