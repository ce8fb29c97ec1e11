package fetcher

import (
	"fmt"
	"net/http"

	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// CheckResponseStatus HTTP 응답 상태 코드를 검사하여, 비정상 응답을 에러 타입으로 변환합니다.
//
// 상태 코드 분류:
//   - 2xx: 정상 (nil 반환)
//   - 401, 403: Unauthorized (봇 차단 가능성)
//   - 404: NotFound
//   - 408, 429, 5xx: Unavailable (일시적 오류, 재시도 대상)
//   - 그 외 4xx: ExecutionFailed
func CheckResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	url := ""
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.Newf(apperrors.Unauthorized, "페이지 접근이 거부되었습니다. 봇 차단일 수 있습니다. (URL: %s, 상태 코드: %d)", url, resp.StatusCode)

	case resp.StatusCode == http.StatusNotFound:
		return apperrors.Newf(apperrors.NotFound, "페이지를 찾을 수 없습니다. (URL: %s)", url)

	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return apperrors.New(apperrors.Unavailable, fmt.Sprintf("서버가 일시적으로 요청을 처리할 수 없습니다. (URL: %s, 상태 코드: %d)", url, resp.StatusCode))

	default:
		return apperrors.Newf(apperrors.ExecutionFailed, "요청이 실패하였습니다. (URL: %s, 상태 코드: %d)", url, resp.StatusCode)
	}
}
