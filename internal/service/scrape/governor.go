package scrape

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape/engine"
)

// EngineFactory 상품 스크래핑 1회를 위한 엔진을 생성합니다.
// 상점의 엔진 종류와 프록시 사용 여부에 맞는 팩토리가 주입됩니다.
type EngineFactory func() (engine.Engine, error)

// Governor 상점별 봇 차단 회피 정책을 집행합니다.
//
//   - 동시성 상한: 세마포어로 상점당 동시 상품 스크래핑 수를 제한합니다.
//   - 요청 지터: 각 네비게이션 전 requestDelayMs * (1 ± 0.3)의 균등 지터 대기를 수행합니다.
//   - 프록시 바인딩: 주입된 EngineFactory가 프록시가 적용된 엔진을 생성합니다.
type Governor struct {
	sem       *semaphore.Weighted
	delay     time.Duration
	newEngine EngineFactory
}

// NewGovernor 상점 설정으로 Governor를 생성합니다.
// 상점 설정의 maxConcurrency가 0이면 전역 기본값(defaultConcurrency)이 적용됩니다.
func NewGovernor(shop model.ShopConfig, defaultConcurrency int, newEngine EngineFactory) *Governor {
	maxConcurrency := shop.AntiBot.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrency
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	return &Governor{
		sem:       semaphore.NewWeighted(int64(maxConcurrency)),
		delay:     time.Duration(shop.AntiBot.RequestDelayMs) * time.Millisecond,
		newEngine: newEngine,
	}
}

// Acquire 동시성 슬롯을 확보하고 지터 대기가 적용된 엔진을 생성합니다.
//
// 반환된 release 함수는 모든 종료 경로에서 반드시 호출되어야 하며,
// 엔진 해제와 슬롯 반납을 함께 수행합니다. (중복 호출에 안전)
func (g *Governor) Acquire(ctx context.Context) (engine.Engine, func(), error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}

	eng, err := g.newEngine()
	if err != nil {
		g.sem.Release(1)
		return nil, nil, err
	}

	governed := &governedEngine{Engine: eng, governor: g}

	var once sync.Once
	release := func() {
		once.Do(func() {
			_ = eng.Close()
			g.sem.Release(1)
		})
	}

	return governed, release, nil
}

// jitterSleep 요청 분산을 위해 설정된 대기 시간에 ±30% 균등 지터를 적용하여 대기합니다.
// 대기 중 컨텍스트가 취소되면 즉시 중단합니다.
func (g *Governor) jitterSleep(ctx context.Context) error {
	if g.delay <= 0 {
		return nil
	}

	jittered := time.Duration(float64(g.delay) * (0.7 + rand.Float64()*0.6))

	timer := time.NewTimer(jittered)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// governedEngine 각 네비게이션 전 지터 대기를 수행하는 엔진 래퍼입니다.
type governedEngine struct {
	engine.Engine
	governor *Governor
}

func (e *governedEngine) Goto(ctx context.Context, url string) error {
	if err := e.governor.jitterSleep(ctx); err != nil {
		return err
	}
	return e.Engine.Goto(ctx, url)
}
