// Package middleware API 서버에서 사용되는 Echo 미들웨어를 제공합니다.
package middleware

import (
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

const componentHTTP = "api.http"

// sensitiveQueryParams 로깅 시 값을 마스킹 처리해야 하는 쿼리 파라미터 키 목록입니다.
var sensitiveQueryParams = []string{
	"app_key",
	"token",
	"secret",
}

// HTTPLogger HTTP 요청/응답을 구조화된 로그로 기록하는 미들웨어를 반환합니다.
// app_key 등의 민감한 쿼리 파라미터 값은 마스킹하여 기록합니다.
func HTTPLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			// 패닉 발생 시에도 로그가 기록되도록 defer로 보장
			defer func() {
				latency := time.Since(start)

				path := req.URL.Path
				if path == "" {
					path = "/"
				}

				applog.WithComponentAndFields(componentHTTP, applog.Fields{
					"method":        req.Method,
					"path":          path,
					"uri":           maskSensitiveQueryParams(req.RequestURI),
					"remote_ip":     c.RealIP(),
					"user_agent":    req.UserAgent(),
					"status":        res.Status,
					"bytes_out":     strconv.FormatInt(res.Size, 10),
					"latency_human": latency.String(),
					"request_id":    res.Header().Get(echo.HeaderXRequestID),
				}).Info("HTTP 요청")
			}()

			if err := next(c); err != nil {
				c.Error(err)
			}
			return nil
		}
	}
}

// maskSensitiveQueryParams URI의 민감한 쿼리 파라미터 값을 마스킹합니다.
// URI 파싱 실패 시 로깅이 중단되지 않도록 원본을 반환합니다.
func maskSensitiveQueryParams(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}

	q := u.Query()
	masked := false
	for _, param := range sensitiveQueryParams {
		if q.Has(param) {
			q.Set(param, applog.MaskSensitiveData(q.Get(param)))
			masked = true
		}
	}

	if masked {
		u.RawQuery = q.Encode()
		return u.String()
	}
	return uri
}
