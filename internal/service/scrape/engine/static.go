package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape/fetcher"
)

// navigationTimeout 단일 페이지 네비게이션의 제한 시간입니다.
const navigationTimeout = 15 * time.Second

// StaticEngine HTTP 클라이언트와 HTML 파서만으로 동작하는 정적 페이지용 엔진입니다.
// JavaScript를 실행하지 않으므로 서버 렌더링 페이지에만 사용할 수 있습니다.
type StaticEngine struct {
	fetcher fetcher.Fetcher
	page    *page
}

// NewStaticEngine 지정된 Fetcher를 사용하는 StaticEngine을 생성합니다.
func NewStaticEngine(f fetcher.Fetcher) *StaticEngine {
	return &StaticEngine{fetcher: f}
}

// Goto 지정된 URL의 페이지를 가져와 파싱합니다.
// 리다이렉트를 따라간 최종 URL이 CurrentURL로 노출됩니다.
func (e *StaticEngine) Goto(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, navigationTimeout)
	defer cancel()

	resp, err := fetcher.Get(navCtx, e.fetcher, url)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, fmt.Sprintf("페이지(%s) 요청 중 네트워크 또는 클라이언트 에러가 발생했습니다.", url))
	}
	defer resp.Body.Close()

	if err := fetcher.CheckResponseStatus(resp); err != nil {
		return err
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	p, err := parsePage(resp.Body, resp.Header.Get("Content-Type"), finalURL)
	if err != nil {
		return err
	}

	e.page = p
	return nil
}

// CurrentURL 마지막 네비게이션의 최종 URL을 반환합니다. 네비게이션 전에는 빈 문자열입니다.
func (e *StaticEngine) CurrentURL() string {
	if e.page == nil {
		return ""
	}
	return e.page.url
}

func (e *StaticEngine) Extract(sel *model.Selector) (string, bool) {
	if e.page == nil {
		return "", false
	}
	return extract(e.page.root, sel)
}

func (e *StaticEngine) ExtractAll(sel *model.Selector) []Element {
	if e.page == nil {
		return nil
	}
	return extractAll(e.page.root, sel)
}

func (e *StaticEngine) Exists(sels model.SelectorList) bool {
	if e.page == nil {
		return false
	}
	return exists(e.page.root, sels)
}

// Close 파싱된 문서를 해제합니다.
func (e *StaticEngine) Close() error {
	e.page = nil
	return nil
}
