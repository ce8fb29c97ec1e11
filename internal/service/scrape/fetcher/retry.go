package fetcher

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

const (
	// defaultMaxRetries 기본 최대 재시도 횟수입니다. (첫 시도 제외)
	defaultMaxRetries = 4

	// defaultMinRetryDelay 지수 백오프의 시작 대기 시간입니다.
	defaultMinRetryDelay = 1 * time.Second

	// defaultMaxRetryDelay 지수 백오프의 상한 대기 시간입니다.
	defaultMaxRetryDelay = 300 * time.Second
)

// RetryFetcher HTTP 요청 실패 시 자동으로 재시도를 수행하는 미들웨어입니다.
//
// 재시도 전략:
//   - 지수 백오프: 재시도 간격을 2배씩 증가 (1초 → 2초 → 4초 → ..., 상한 300초)
//   - Full Jitter: 계산된 대기 시간 범위 내에서 무작위 값을 선택하여 동시 재시도 분산
//   - 컨텍스트 취소 감지: 대기 중 컨텍스트가 취소되면 즉시 중단
type RetryFetcher struct {
	delegate      Fetcher
	maxRetries    int
	minRetryDelay time.Duration
	maxRetryDelay time.Duration
}

var _ Fetcher = (*RetryFetcher)(nil)

// NewRetryFetcher 기본 재시도 정책(최대 4회, 1초~300초 백오프)이 적용된 RetryFetcher를 생성합니다.
func NewRetryFetcher(delegate Fetcher) *RetryFetcher {
	return NewRetryFetcherWithPolicy(delegate, defaultMaxRetries, defaultMinRetryDelay, defaultMaxRetryDelay)
}

// NewRetryFetcherWithPolicy 재시도 정책을 직접 지정하여 RetryFetcher를 생성합니다.
func NewRetryFetcherWithPolicy(delegate Fetcher, maxRetries int, minRetryDelay, maxRetryDelay time.Duration) *RetryFetcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if minRetryDelay < time.Second {
		// 너무 짧은 대기 시간(1초 미만)은 서버에 부담을 줄 수 있으므로 1초로 보정
		minRetryDelay = 1 * time.Second
	}
	if maxRetryDelay < minRetryDelay {
		maxRetryDelay = minRetryDelay
	}

	return &RetryFetcher{
		delegate:      delegate,
		maxRetries:    maxRetries,
		minRetryDelay: minRetryDelay,
		maxRetryDelay: maxRetryDelay,
	}
}

// Do HTTP 요청을 수행하며, 실패 시 설정된 정책에 따라 자동으로 재시도합니다.
//
// 재시도 대상:
//   - 네트워크 오류 (타임아웃, 연결 실패 등)
//   - 5xx 서버 에러, 429 Too Many Requests, 408 Request Timeout
//
// 재시도 제외:
//   - 컨텍스트 취소 (context.Canceled)
//   - 4xx 클라이언트 에러 (401, 403, 404 등)
func (f *RetryFetcher) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for i := 0; i <= f.maxRetries; i++ {
		if i > 0 {
			// 지수 백오프 계산: minRetryDelay * 2^(retry-1), 상한 maxRetryDelay
			delay := f.minRetryDelay * time.Duration(1<<(i-1))
			if delay > f.maxRetryDelay {
				delay = f.maxRetryDelay
			}

			// Full Jitter: 0 ~ delay 사이의 무작위 값 선택 (Thundering Herd 방지)
			if delay > 0 {
				delay = time.Duration(rand.Int64N(int64(delay) + 1))
			}
			if delay < time.Millisecond {
				delay = f.minRetryDelay
			}

			applog.WithComponentAndFields("fetcher", applog.Fields{
				"url":         req.URL.Redacted(),
				"retry":       i,
				"max_retries": f.maxRetries,
				"delay":       delay.String(),
				"error":       lastErr.Error(),
			}).Warn("재시도 대기 중: 일시적 오류로 인해 요청 재시도를 준비합니다")

			timer := time.NewTimer(delay)
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()

			case <-timer.C:
			}
		}

		resp, err := f.delegate.Do(req)
		if err == nil {
			// 재시도 대상 상태 코드는 에러로 변환하여 재시도 루프에 합류시킵니다.
			if isRetriableStatus(resp.StatusCode) {
				statusErr := CheckResponseStatus(resp)
				drainAndCloseBody(resp)

				lastErr = statusErr
				continue
			}
			return resp, nil
		}

		if !isRetriable(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, apperrors.Wrapf(lastErr, apperrors.Unavailable, "최대 재시도 횟수(%d회)를 초과하였습니다", f.maxRetries)
}

// drainAndCloseBody 커넥션 재사용을 위해 응답 Body를 비우고 닫습니다.
func drainAndCloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// isRetriableStatus 재시도해볼 가치가 있는 HTTP 상태 코드인지 판단합니다.
func isRetriableStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		return true
	}
	if statusCode >= 500 {
		// 501, 505, 511은 영구적인 문제이므로 재시도해도 성공할 가능성이 낮음
		switch statusCode {
		case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported, http.StatusNetworkAuthenticationRequired:
			return false
		}
		return true
	}
	return false
}

// isRetriable 발생한 에러가 재시도 가능한 일시적인 오류인지 판단합니다.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	// context.Canceled는 사용자가 명시적으로 요청을 취소한 것이므로 재시도 제외
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// 타임아웃은 일시적인 네트워크 지연으로 간주하여 재시도
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// 명확한 비즈니스 로직 에러는 재시도해도 동일한 결과가 나오므로 재시도 제외
	if apperrors.Is(err, apperrors.InvalidInput) ||
		apperrors.Is(err, apperrors.Unauthorized) ||
		apperrors.Is(err, apperrors.NotFound) ||
		apperrors.Is(err, apperrors.ParsingFailed) {
		return false
	}

	// 명확한 실패 사유가 없다면 일시적 오류(DNS 조회 실패, 연결 거부 등)로 간주하고 재시도
	return true
}
