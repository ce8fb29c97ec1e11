package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/darkkaiser/cardwatch-server/internal/service/api/httputil"
	appmiddleware "github.com/darkkaiser/cardwatch-server/internal/service/api/middleware"
)

const (
	defaultReadTimeout       = 30 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second

	// defaultRequestTimeout 개별 요청의 최대 처리 시간입니다. 초과 시 503을 반환합니다.
	defaultRequestTimeout = 30 * time.Second

	// defaultMaxBodySize 요청 본문 크기 제한입니다. 초과 시 413을 반환합니다.
	defaultMaxBodySize = "1M"

	// defaultRateLimitPerSecond IP당 초당 허용 요청 수입니다.
	defaultRateLimitPerSecond = 20
)

// HTTPServerConfig HTTP 서버 생성에 필요한 설정을 정의합니다.
type HTTPServerConfig struct {
	// Debug Echo 프레임워크의 디버그 모드 활성화 여부
	Debug bool
}

// NewHTTPServer 설정된 미들웨어를 포함한 Echo 인스턴스를 생성합니다.
//
// 미들웨어는 다음 순서로 적용됩니다:
//  1. Recover - 핸들러 패닉 복구
//  2. RequestID - 요청별 고유 ID 부여 (X-Request-ID 헤더)
//  3. Server 헤더 제거
//  4. HTTPLogger - 구조화된 요청/응답 로깅 (민감 파라미터 마스킹)
//  5. RateLimiter - IP 기반 요청 제한
//  6. BodyLimit - 요청 본문 크기 제한
//  7. Timeout - 요청 처리 시간 제한
//  8. Secure - 보안 응답 헤더
//
// 라우트 설정은 포함되지 않으며, 반환된 Echo 인스턴스에 별도로 설정해야 합니다.
func NewHTTPServer(cfg HTTPServerConfig) *echo.Echo {
	e := echo.New()

	e.Debug = cfg.Debug
	e.HideBanner = true

	e.Server.ReadTimeout = defaultReadTimeout
	e.Server.ReadHeaderTimeout = defaultReadHeaderTimeout
	e.Server.WriteTimeout = defaultWriteTimeout
	e.Server.IdleTimeout = defaultIdleTimeout

	// 전역 HTTP 에러 핸들러 설정
	e.HTTPErrorHandler = httputil.ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	// 응답 헤더에서 Server 필드를 제거하여 기술 스택 노출을 줄입니다.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderServer, "")
			return next(c)
		}
	})
	e.Use(appmiddleware.HTTPLogger())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(defaultRateLimitPerSecond)))
	e.Use(middleware.BodyLimit(defaultMaxBodySize))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: defaultRequestTimeout,
	}))
	e.Use(middleware.Secure())

	return e
}
