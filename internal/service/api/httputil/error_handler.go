package httputil

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

const componentErrorHandler = "api.errorhandler"

const errMsgInternalServer = "서버 내부 오류가 발생하였습니다"

// ErrorHandler Echo 프레임워크의 전역 에러 핸들러입니다.
//
// 모든 HTTP 에러를 가로채서 표준 ErrorResponse JSON 형식으로 변환하여 반환합니다.
// 핸들러가 도메인 에러(AppError)를 그대로 반환한 경우에는
// 에러 종류에 맞는 HTTP 상태 코드로 매핑합니다.
func ErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := errMsgInternalServer

	switch {
	case apperrors.Is(err, apperrors.NotFound):
		code = http.StatusNotFound
		message = err.Error()
	case apperrors.Is(err, apperrors.InvalidInput):
		code = http.StatusBadRequest
		message = err.Error()
	case apperrors.Is(err, apperrors.Unauthorized):
		code = http.StatusUnauthorized
		message = err.Error()
	case apperrors.Is(err, apperrors.Unavailable):
		code = http.StatusServiceUnavailable
		message = err.Error()
	default:
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else if resp, ok := he.Message.(ErrorResponse); ok {
				message = resp.Message
			}
		}
	}

	// 미등록 경로의 404는 메시지를 통일합니다.
	if code == http.StatusNotFound && message == http.StatusText(http.StatusNotFound) {
		message = "요청하신 리소스를 찾을 수 없습니다"
	}

	fields := applog.Fields{
		"path":        c.Request().URL.Path,
		"method":      c.Request().Method,
		"status_code": code,
		"error":       err,
		"remote_ip":   c.RealIP(),
		"request_id":  c.Response().Header().Get(echo.HeaderXRequestID),
	}

	if code >= http.StatusInternalServerError {
		applog.WithComponentAndFields(componentErrorHandler, fields).Error("HTTP 5xx 서버 오류")
	} else if code >= http.StatusBadRequest {
		applog.WithComponentAndFields(componentErrorHandler, fields).Warn("HTTP 4xx 클라이언트 오류")
	}

	// 이중 응답 방지: 이미 응답이 전송된 경우 추가 응답 시도하지 않음
	if c.Response().Committed {
		return
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}

	_ = c.JSON(code, ErrorResponse{
		ResultCode: code,
		Message:    message,
	})
}
