package api

import (
	"github.com/labstack/echo/v4"

	"github.com/darkkaiser/cardwatch-server/internal/service/api/handler/system"
)

// RegisterRoutes API 서비스의 전역 라우트를 등록합니다.
//
// 서비스 상태 확인(/healthz)과 버전 정보(/version)는 인증 없이 호출 가능합니다.
func RegisterRoutes(e *echo.Echo, h *system.Handler) {
	e.GET("/healthz", h.HealthCheckHandler)
	e.GET("/version", h.VersionHandler)
}
