package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/darkkaiser/cardwatch-server/internal/service/api/httputil"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

const componentAuth = "api.middleware.auth"

const (
	// headerXAppKey 인증용 HTTP 헤더 키 (권장 방식)
	headerXAppKey = "X-App-Key"

	// queryParamAppKey 인증용 쿼리 파라미터 키 (레거시 호환)
	queryParamAppKey = "app_key"
)

// RequireAppKey 설정된 App Key와 일치하는 요청만 통과시키는 인증 미들웨어를 반환합니다.
//
// App Key 추출 우선순위:
//  1. X-App-Key 헤더 (권장)
//  2. app_key 쿼리 파라미터 (레거시) - 사용 시 경고 로그 출력
//
// 인증 실패 시 401 Unauthorized를 반환합니다.
func RequireAppKey(appKey string) echo.MiddlewareFunc {
	if appKey == "" {
		panic("App Key는 필수입니다")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			received := extractAppKey(c)
			if received == "" {
				return httputil.NewUnauthorizedError("app_key가 필요합니다")
			}

			if received != appKey {
				applog.WithComponentAndFields(componentAuth, applog.Fields{
					"method":           c.Request().Method,
					"path":             c.Path(),
					"remote_ip":        c.RealIP(),
					"received_app_key": applog.MaskSensitiveData(received),
				}).Warn("APP_KEY 불일치")

				return httputil.NewUnauthorizedError("app_key가 유효하지 않습니다")
			}

			return next(c)
		}
	}
}

// extractAppKey 요청에서 App Key를 추출합니다. 헤더 우선, 쿼리 파라미터 폴백.
func extractAppKey(c echo.Context) string {
	appKey := c.Request().Header.Get(headerXAppKey)
	if appKey == "" {
		appKey = c.QueryParam(queryParamAppKey)

		// 레거시 방식 사용 시 경고 로그
		if appKey != "" {
			applog.WithComponentAndFields(componentAuth, applog.Fields{
				"method":    c.Request().Method,
				"path":      c.Path(),
				"remote_ip": c.RealIP(),
			}).Warn("보안 경고: 쿼리 파라미터로 App Key 전달됨 (헤더 사용 권장)")
		}
	}
	return appKey
}
