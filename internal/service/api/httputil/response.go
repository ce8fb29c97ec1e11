// Package httputil API 서버의 표준 응답 형식과 HTTP 에러 생성을 담당합니다.
package httputil

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse 모든 API 에러 응답의 표준 JSON 형식입니다.
type ErrorResponse struct {
	ResultCode int    `json:"result_code"`
	Message    string `json:"message"`
}

// SuccessResponse 본문이 필요 없는 성공 응답의 표준 JSON 형식입니다.
type SuccessResponse struct {
	ResultCode int    `json:"result_code"`
	Message    string `json:"message"`
}

// NewBadRequestError 400 Bad Request 에러를 생성합니다
func NewBadRequestError(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{
		ResultCode: http.StatusBadRequest,
		Message:    message,
	})
}

// NewUnauthorizedError 401 Unauthorized 에러를 생성합니다
func NewUnauthorizedError(message string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, ErrorResponse{
		ResultCode: http.StatusUnauthorized,
		Message:    message,
	})
}

// NewNotFoundError 404 Not Found 에러를 생성합니다
func NewNotFoundError(message string) error {
	return echo.NewHTTPError(http.StatusNotFound, ErrorResponse{
		ResultCode: http.StatusNotFound,
		Message:    message,
	})
}

// NewInternalServerError 500 Internal Server Error 에러를 생성합니다
func NewInternalServerError(message string) error {
	return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{
		ResultCode: http.StatusInternalServerError,
		Message:    message,
	})
}

// Success 표준 성공 응답(200 OK)을 JSON 형식으로 반환합니다.
func Success(c echo.Context) error {
	return c.JSON(http.StatusOK, SuccessResponse{
		ResultCode: 0,
		Message:    "성공",
	})
}
