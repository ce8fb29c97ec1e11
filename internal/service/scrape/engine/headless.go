package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// actionTimeout 네비게이션 이후 개별 동작(HTML 스냅샷, URL 조회 등)의 제한 시간입니다.
const actionTimeout = 5 * time.Second

// blockedResourceTypes 렌더링 결과에 영향을 주지 않는 리소스 타입들입니다.
// 로드를 차단하여 네비게이션 속도를 높이고 트래픽을 줄입니다.
var blockedResourceTypes = map[network.ResourceType]bool{
	network.ResourceTypeImage:      true,
	network.ResourceTypeFont:       true,
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeMedia:      true,
}

// blockedURLFragments 분석/추적 스크립트의 URL 조각들입니다. 스크래핑에 불필요하므로 차단합니다.
var blockedURLFragments = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"facebook.net",
	"hotjar.com",
	"clarity.ms",
}

// Browser 모든 HeadlessEngine이 공유하는 단일 크롬 프로세스입니다.
//
// 브라우저 프로세스 기동 비용이 크므로 애플리케이션 수명 동안 하나만 유지하고,
// 각 엔진은 탭(chromedp 자식 컨텍스트) 단위로 생성됩니다.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	closeOnce sync.Once
}

// NewBrowser 헤드리스 크롬 프로세스를 기동합니다.
// proxyURL이 비어 있지 않으면 브라우저의 모든 요청이 해당 프록시를 경유합니다.
func NewBrowser(ctx context.Context, proxyURL string) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-zygote", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
	)
	if proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(proxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// 브라우저 프로세스를 미리 기동하여 첫 네비게이션 지연을 제거합니다.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, apperrors.Wrap(err, apperrors.System, "헤드리스 브라우저 기동에 실패했습니다")
	}

	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewEngine 브라우저 탭 하나를 점유하는 새 HeadlessEngine을 생성합니다.
// 반환된 엔진의 Close가 호출되어야 탭이 해제됩니다.
func (b *Browser) NewEngine() *HeadlessEngine {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)

	engine := &HeadlessEngine{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
	}
	engine.listenResourceBlocking()

	return engine
}

// Close 브라우저 프로세스를 종료합니다. 좀비 프로세스 방지를 위해 종료 시 반드시 호출해야 합니다.
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		b.browserCancel()
		b.allocCancel()
	})
}

// HeadlessEngine JavaScript 렌더링이 필요한 페이지를 위한 헤드리스 브라우저 엔진입니다.
//
// 네비게이션이 완료되면 렌더링된 DOM을 스냅샷으로 가져와 정적 엔진과 동일한
// 추출 코어(page) 위에서 질의를 수행합니다. 탭 하나를 점유하므로 사용 후
// 반드시 Close를 호출해야 합니다.
type HeadlessEngine struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	page      *page
}

// listenResourceBlocking fetch 도메인 이벤트를 구독하여 불필요한 리소스 요청을 차단합니다.
func (e *HeadlessEngine) listenResourceBlocking() {
	chromedp.ListenTarget(e.tabCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}

		// 이벤트 핸들러 내에서 CDP 명령을 직접 실행하면 데드락이 발생하므로 별도 고루틴에서 처리합니다.
		go func() {
			c := chromedp.FromContext(e.tabCtx)
			executor := cdp.WithExecutor(e.tabCtx, c.Target)

			if shouldBlockRequest(paused) {
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(executor)
				return
			}
			_ = fetch.ContinueRequest(paused.RequestID).Do(executor)
		}()
	})
}

// shouldBlockRequest 요청의 리소스 타입과 URL을 검사하여 차단 여부를 결정합니다.
func shouldBlockRequest(paused *fetch.EventRequestPaused) bool {
	if blockedResourceTypes[paused.ResourceType] {
		return true
	}
	for _, fragment := range blockedURLFragments {
		if strings.Contains(paused.Request.URL, fragment) {
			return true
		}
	}
	return false
}

// Goto 지정된 URL로 이동하여 JavaScript 렌더링이 완료된 DOM 스냅샷을 확보합니다.
func (e *HeadlessEngine) Goto(ctx context.Context, url string) error {
	// 탭 컨텍스트에 호출자의 취소와 네비게이션 제한 시간을 함께 적용합니다.
	navCtx, cancel := context.WithTimeout(e.tabCtx, navigationTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(navCtx,
		fetch.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return apperrors.Wrap(err, apperrors.Timeout, "페이지 네비게이션이 실패했습니다. (URL: "+url+")")
	}

	actionCtx, actionCancel := context.WithTimeout(e.tabCtx, actionTimeout)
	defer actionCancel()

	var currentURL, renderedHTML string
	if err := chromedp.Run(actionCtx,
		chromedp.Location(&currentURL),
		chromedp.OuterHTML("html", &renderedHTML, chromedp.ByQuery),
	); err != nil {
		return apperrors.Wrap(err, apperrors.Timeout, "렌더링된 페이지 스냅샷 확보에 실패했습니다. (URL: "+url+")")
	}

	p, err := parsePage(strings.NewReader(renderedHTML), "text/html; charset=utf-8", currentURL)
	if err != nil {
		return err
	}

	applog.WithComponentAndFields("engine", applog.Fields{
		"url":       url,
		"final_url": currentURL,
	}).Trace("헤드리스 네비게이션이 완료되었습니다.")

	e.page = p
	return nil
}

func (e *HeadlessEngine) CurrentURL() string {
	if e.page == nil {
		return ""
	}
	return e.page.url
}

func (e *HeadlessEngine) Extract(sel *model.Selector) (string, bool) {
	if e.page == nil {
		return "", false
	}
	return extract(e.page.root, sel)
}

func (e *HeadlessEngine) ExtractAll(sel *model.Selector) []Element {
	if e.page == nil {
		return nil
	}
	return extractAll(e.page.root, sel)
}

func (e *HeadlessEngine) Exists(sels model.SelectorList) bool {
	if e.page == nil {
		return false
	}
	return exists(e.page.root, sels)
}

// Close 점유한 브라우저 탭을 해제합니다.
func (e *HeadlessEngine) Close() error {
	e.tabCancel()
	e.page = nil
	return nil
}
