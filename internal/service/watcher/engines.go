package watcher

import (
	"context"
	"sync"

	"github.com/darkkaiser/cardwatch-server/internal/config"
	"github.com/darkkaiser/cardwatch-server/internal/model"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape/engine"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape/fetcher"
)

// EngineProvider 상점별 엔진 팩토리를 구성하고 헤드리스 브라우저의 수명을 관리합니다.
//
// 정적 엔진은 상점마다 재시도 fetcher 체인 위에 생성되고, 헤드리스 엔진은
// 프록시 사용 여부별로 공유되는 브라우저 프로세스에서 탭 단위로 생성됩니다.
type EngineProvider struct {
	proxy config.ProxyConfig

	mu       sync.Mutex
	browsers map[string]*engine.Browser // key: 프록시 URL ("" = 프록시 미사용)
}

// NewEngineProvider 엔진 프로바이더를 생성합니다.
func NewEngineProvider(proxy config.ProxyConfig) *EngineProvider {
	return &EngineProvider{
		proxy:    proxy,
		browsers: make(map[string]*engine.Browser),
	}
}

// FactoryFor 상점의 엔진 종류와 프록시 사용 여부에 맞는 엔진 팩토리를 구성합니다.
func (p *EngineProvider) FactoryFor(ctx context.Context, shop model.ShopConfig) (scrape.EngineFactory, error) {
	proxyURL := ""
	if p.proxy.Enabled && shop.AntiBot.UseProxy {
		proxyURL = p.proxy.URL
	}

	switch shop.Engine {
	case model.EngineHeadlessBrowser:
		browser, err := p.browserFor(ctx, proxyURL)
		if err != nil {
			return nil, err
		}
		return func() (engine.Engine, error) {
			return browser.NewEngine(), nil
		}, nil

	default:
		var base fetcher.Fetcher
		if proxyURL != "" {
			proxyFetcher, err := fetcher.NewProxyHTTPFetcher(proxyURL)
			if err != nil {
				return nil, err
			}
			base = proxyFetcher
		} else {
			base = fetcher.NewHTTPFetcher()
		}

		retrying := fetcher.NewRetryFetcher(base)
		return func() (engine.Engine, error) {
			return engine.NewStaticEngine(retrying), nil
		}, nil
	}
}

// browserFor 프록시 키별 공유 브라우저를 반환합니다. 없으면 새로 기동합니다.
func (p *EngineProvider) browserFor(ctx context.Context, proxyURL string) (*engine.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if browser, ok := p.browsers[proxyURL]; ok {
		return browser, nil
	}

	browser, err := engine.NewBrowser(ctx, proxyURL)
	if err != nil {
		return nil, err
	}
	p.browsers[proxyURL] = browser
	return browser, nil
}

// Close 기동된 모든 브라우저 프로세스를 종료합니다.
func (p *EngineProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, browser := range p.browsers {
		browser.Close()
	}
	p.browsers = make(map[string]*engine.Browser)
}
