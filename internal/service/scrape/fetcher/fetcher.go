// Package fetcher 상점 페이지 요청을 위한 HTTP 클라이언트 계층을 제공합니다.
//
// Fetcher 인터페이스를 중심으로 기본 클라이언트(HTTPFetcher)와
// 재시도 미들웨어(RetryFetcher)를 조합하여 사용합니다.
package fetcher

import (
	"context"
	"net/http"
)

// Fetcher HTTP 요청을 수행하는 인터페이스
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Get 지정된 URL로 HTTP GET 요청을 전송합니다.
// Fetcher 인터페이스의 구현체가 공통으로 사용할 수 있는 헬퍼 함수입니다.
func Get(ctx context.Context, f Fetcher, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return f.Do(req)
}
