// Package watcher 감시 사이클 스케줄러 서비스입니다.
//
// 주기적 틱마다 등급(fetchingTier)이 도래한 상점들을 선정하여 상품 스크래핑을 수행하고,
// 모든 결과를 저장소와 디스패처로 라우팅한 뒤 알림 발송과 상태 저장으로 사이클을 마무리합니다.
package watcher

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/darkkaiser/cardwatch-server/internal/config"
	"github.com/darkkaiser/cardwatch-server/internal/model"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape"
	"github.com/darkkaiser/cardwatch-server/pkg/cronx"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// saturationPollInterval 디스패처 대기열 고수위 해소를 확인하는 주기입니다.
const saturationPollInterval = 250 * time.Millisecond

// CatalogReader 사이클 시작 시 감시 카탈로그를 읽는 계약입니다.
type CatalogReader interface {
	ActiveProducts(ctx context.Context) ([]model.Product, error)
	ProductTypes(ctx context.Context) (map[string]model.ProductType, error)
	ProductSets(ctx context.Context) (map[string]model.ProductSet, error)
}

// ResultWriter 수집 결과 저장 계약입니다.
type ResultWriter interface {
	Upsert(ctx context.Context, result model.ProductResult) error
}

// Dispatcher 사이클 생애주기에 맞춘 알림 디스패처 계약입니다.
type Dispatcher interface {
	PreloadForCycle(ctx context.Context, productIDs []string) ([]string, error)
	ProcessResult(product *model.ResolvedProduct, shop model.ShopConfig, result model.ProductResult)
	FlushNotifications(ctx context.Context)
	PersistStates(ctx context.Context) error
	Saturated() bool
}

// shopRunner 단일 상점의 스크래핑 실행 단위입니다.
type shopRunner struct {
	shop     model.ShopConfig
	scraper  *scrape.Scraper
	governor *scrape.Governor
}

// Service 감시 사이클 스케줄러입니다.
type Service struct {
	cfg     *config.AppConfig
	catalog CatalogReader
	results ResultWriter
	disp    Dispatcher
	runners []*shopRunner
	logger  *log.Entry

	// tick 서비스 시작 이후의 틱 일련번호입니다. 등급별 주기 배수 판정에 사용됩니다.
	tick atomic.Int64

	runningMu sync.Mutex
	running   bool
}

// NewService 스케줄러 서비스를 생성합니다.
//
// 상점별 엔진 팩토리는 호출자가 상점의 엔진 종류와 프록시 사용 여부에 맞게 구성하여
// engineFactories에 상점 ID로 담아 전달합니다.
func NewService(cfg *config.AppConfig, shops []model.ShopConfig, engineFactories map[string]scrape.EngineFactory,
	catalog CatalogReader, results ResultWriter, disp Dispatcher) *Service {

	runners := make([]*shopRunner, 0, len(shops))
	for _, shop := range shops {
		runners = append(runners, &shopRunner{
			shop:     shop,
			scraper:  scrape.NewScraper(shop),
			governor: scrape.NewGovernor(shop, cfg.Watch.ProductConcurrency, engineFactories[shop.ID]),
		})
	}

	return &Service{
		cfg:     cfg,
		catalog: catalog,
		results: results,
		disp:    disp,
		runners: runners,
		logger:  applog.WithComponent("watcher"),
	}
}

// Start 스케줄러를 시작합니다.
//
// 종료 신호가 오면 새 사이클 시작을 멈추고, 진행 중인 사이클이 끝날 때까지 기다린 뒤 종료합니다.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if s.running {
		serviceStopWG.Done()
		s.logger.Warn("Watcher 서비스가 이미 시작되어 있습니다.")
		return nil
	}

	cronLogger := cron.PrintfLogger(s.logger)
	scheduler := cron.New(
		cron.WithParser(cronx.StandardParser()),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := scheduler.AddFunc("@every "+s.cfg.Watch.CyclePeriod, func() {
		s.runCycle(serviceStopCtx)
	}); err != nil {
		serviceStopWG.Done()
		return err
	}

	scheduler.Start()
	s.running = true

	s.logger.WithField("period", s.cfg.Watch.CyclePeriod).Info("Watcher 서비스가 시작되었습니다.")

	go func() {
		defer serviceStopWG.Done()

		<-serviceStopCtx.Done()

		s.logger.Info("Watcher 서비스 중지중... 진행 중인 사이클이 끝나기를 기다립니다.")

		// Stop은 진행 중인 작업이 모두 끝나면 완료되는 컨텍스트를 반환한다.
		<-scheduler.Stop().Done()

		s.runningMu.Lock()
		s.running = false
		s.runningMu.Unlock()

		s.logger.Info("Watcher 서비스가 중지되었습니다.")
	}()

	return nil
}

// runCycle 단일 감시 사이클을 수행합니다.
//
// 사이클 도중 종료 신호나 데드라인으로 스크래핑이 중단되더라도,
// 이미 발행된 결과에 대한 알림 발송(flush)은 항상 수행됩니다.
// 단, 저장소 실패로 중단된 사이클에서는 알림 상태를 저장하지 않습니다.
func (s *Service) runCycle(serviceStopCtx context.Context) {
	tick := s.tick.Add(1)

	dueRunners := s.dueRunners(tick)
	if len(dueRunners) == 0 {
		return
	}

	cycleCtx, cancelCycle := context.WithTimeout(serviceStopCtx, s.cfg.Watch.CycleDeadlineDuration())
	defer cancelCycle()

	startedAt := time.Now()
	s.logger.WithFields(applog.Fields{"tick": tick, "shops": len(dueRunners)}).Info("감시 사이클을 시작합니다.")

	products, err := s.loadResolvedProducts(cycleCtx)
	if err != nil {
		s.logger.WithField("error", err.Error()).Error("카탈로그 로드에 실패하여 사이클을 중단합니다.")
		return
	}

	productIDs := make([]string, 0, len(products))
	for _, product := range products {
		productIDs = append(productIDs, product.ID)
	}

	subscribed, err := s.disp.PreloadForCycle(cycleCtx, productIDs)
	if err != nil {
		s.logger.WithField("error", err.Error()).Error("디스패처 프리로드에 실패하여 사이클을 중단합니다.")
		return
	}

	// 구독자가 없는 상품의 스크래핑은 생략한다.
	targetProducts := filterSubscribed(products, subscribed)
	if len(targetProducts) == 0 {
		s.logger.Debug("구독 중인 상품이 없어 사이클을 종료합니다.")
		return
	}

	// 저장소 실패로 인한 중단은 종료 신호/데드라인과 구분하여 기록한다.
	var storeFailed atomic.Bool
	abortCycle := func() {
		storeFailed.Store(true)
		cancelCycle()
	}

	var shopWG sync.WaitGroup
	for _, runner := range dueRunners {
		shopWG.Add(1)
		go func(runner *shopRunner) {
			defer shopWG.Done()
			s.scrapeShop(cycleCtx, abortCycle, runner, targetProducts)
		}(runner)
	}
	shopWG.Wait()

	// 종료/데드라인과 무관하게 현재 대기열은 반드시 비운다.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), s.cfg.Watch.CycleDeadlineDuration())
	defer cancelFlush()

	s.disp.FlushNotifications(flushCtx)

	// 저장소 실패로 중단된 사이클에서는 상태를 저장하지 않는다.
	// 다음 사이클의 프리로드가 저장소의 상태를 다시 읽어 같은 조건을 재관측한다.
	if storeFailed.Load() {
		s.logger.Warn("저장소 실패로 중단된 사이클이므로 알림 상태 저장을 건너뜁니다.")
	} else if err := s.disp.PersistStates(flushCtx); err != nil {
		s.logger.WithField("error", err.Error()).
			Error("알림 상태 저장에 실패하였습니다. 다음 사이클의 재관측으로 복구됩니다.")
	}

	s.logger.WithFields(applog.Fields{
		"tick":     tick,
		"products": len(targetProducts),
		"elapsed":  time.Since(startedAt).Round(time.Millisecond).String(),
	}).Info("감시 사이클이 완료되었습니다.")
}

// dueRunners 이번 틱에 스크래핑이 도래한 상점들을 반환합니다.
// super-fast 등급은 매 틱, 느린 등급일수록 2의 거듭제곱 배수 틱마다 도래합니다.
func (s *Service) dueRunners(tick int64) []*shopRunner {
	var due []*shopRunner
	for _, runner := range s.runners {
		if tick%int64(runner.shop.FetchingTier.CycleMultiplier()) == 0 {
			due = append(due, runner)
		}
	}
	return due
}

// scrapeShop 단일 상점의 모든 대상 상품을 Governor 통제 하에 병렬 스크래핑합니다.
// 상점 범위의 실패는 로그만 남기고 해당 상점을 이번 사이클에서 건너뜁니다.
func (s *Service) scrapeShop(ctx context.Context, abortCycle func(), runner *shopRunner, products []*model.ResolvedProduct) {
	var productWG sync.WaitGroup
	defer productWG.Wait()

	for _, product := range products {
		// 디스패처 대기열이 고수위를 넘으면 새 스크래핑 투입을 일시 중지한다(배압).
		if err := s.waitForQueueCapacity(ctx); err != nil {
			return
		}

		eng, release, err := runner.governor.Acquire(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.WithFields(applog.Fields{"shop": runner.shop.ID, "error": err.Error()}).
					Error("엔진 확보에 실패하여 이번 사이클에서 상점을 건너뜁니다.")
			}
			return
		}

		productWG.Add(1)
		go func(product *model.ResolvedProduct) {
			defer productWG.Done()
			defer release()

			if ctx.Err() != nil {
				return
			}

			result := runner.scraper.ScrapeProduct(ctx, eng, product)

			// 저장소 실패는 사이클 전체를 중단시킨다. 상태가 저장되지 않으므로
			// 다음 사이클이 같은 조건을 다시 관측하게 된다.
			if err := s.results.Upsert(ctx, result); err != nil {
				if ctx.Err() == nil {
					s.logger.WithFields(applog.Fields{"shop": runner.shop.ID, "product": product.ID, "error": err.Error()}).
						Error("수집 결과 저장에 실패하여 사이클을 중단합니다.")
				}
				abortCycle()
				return
			}

			s.disp.ProcessResult(product, runner.shop, result)
		}(product)
	}
}

// waitForQueueCapacity 디스패처 대기열의 고수위가 해소될 때까지 대기합니다.
func (s *Service) waitForQueueCapacity(ctx context.Context) error {
	if !s.disp.Saturated() {
		return nil
	}

	s.logger.Warn("알림 대기열이 고수위에 도달하여 새 스크래핑 투입을 일시 중지합니다.")

	ticker := time.NewTicker(saturationPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.disp.Saturated() {
				return nil
			}
		}
	}
}

// loadResolvedProducts 카탈로그를 로드하고 각 상품의 검색 설정을 확정합니다.
// 같은 세트의 상품들이 상점 내에서 연달아 처리되도록 세트 단위로 정렬합니다.
func (s *Service) loadResolvedProducts(ctx context.Context) ([]*model.ResolvedProduct, error) {
	products, err := s.catalog.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	types, err := s.catalog.ProductTypes(ctx)
	if err != nil {
		return nil, err
	}
	sets, err := s.catalog.ProductSets(ctx)
	if err != nil {
		return nil, err
	}

	allSets := make([]model.ProductSet, 0, len(sets))
	for _, set := range sets {
		allSets = append(allSets, set)
	}

	resolved := make([]*model.ResolvedProduct, 0, len(products))
	for _, product := range products {
		var productType *model.ProductType
		if t, ok := types[product.ProductTypeID]; ok {
			productType = &t
		}
		var productSet *model.ProductSet
		if set, ok := sets[product.ProductSetID]; ok {
			productSet = &set
		}

		r := model.ResolveProduct(product, productType, productSet, allSets)
		resolved = append(resolved, &r)
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].ProductSetID != resolved[j].ProductSetID {
			return resolved[i].ProductSetID < resolved[j].ProductSetID
		}
		return resolved[i].ID < resolved[j].ID
	})

	return resolved, nil
}

// filterSubscribed 구독자가 있는 상품만 남깁니다.
func filterSubscribed(products []*model.ResolvedProduct, subscribed []string) []*model.ResolvedProduct {
	subscribedSet := make(map[string]struct{}, len(subscribed))
	for _, id := range subscribed {
		subscribedSet[id] = struct{}{}
	}

	var filtered []*model.ResolvedProduct
	for _, product := range products {
		if _, ok := subscribedSet[product.ID]; ok {
			filtered = append(filtered, product)
		}
	}
	return filtered
}
