package dispatch

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// Adapter 알림 채널 어댑터의 계약입니다.
//
// 구현은 호출 간 상태를 가지지 않고 동시 호출에 안전해야 하며,
// 한 사용자의 메시지가 같은 채팅 안에서 순서 경합을 일으키지 않아야 합니다.
type Adapter interface {
	// Name 어댑터가 담당하는 채널을 반환합니다.
	Name() model.Channel

	// Send 지정된 채널 대상에게 알림을 렌더링하여 전송합니다.
	Send(ctx context.Context, channelTarget string, payload model.NotificationPayload) error
}

// WatchReader 사이클 프리로드에 필요한 감시 항목/알림 대상 조회 계약입니다.
type WatchReader interface {
	ActiveWatchersByProductIDs(ctx context.Context, productIDs []string) (map[string][]model.WatchEntry, error)
	NotificationTargets(ctx context.Context, userIDs []string) (map[string][]model.NotificationTarget, error)
}

// StateReadWriter 알림 상태의 일괄 로드/저장 계약입니다.
type StateReadWriter interface {
	LoadForProducts(ctx context.Context, productIDs []string) (map[string]model.NotificationState, error)
	SaveAll(ctx context.Context, states []model.NotificationState) error
}

// AuditWriter 알림 발송 감사 레코드 기록 계약입니다.
type AuditWriter interface {
	Insert(ctx context.Context, notification model.Notification) error
}

// Options 디스패처의 배치/대기열 정책입니다.
type Options struct {
	// FlushBatchSize 한 배치에서 동시에 전송하는 알림 수입니다.
	FlushBatchSize int

	// FlushBatchDelay 배치 사이의 최소 간격입니다. 채널 전역 전송 한도를 준수하기 위한 값입니다.
	FlushBatchDelay time.Duration

	// QueueHighWater 대기열 고수위 기준입니다. 초과 시 Saturated가 참이 되어
	// 스케줄러가 새 스크래핑 투입을 일시 중지합니다.
	QueueHighWater int
}

// queuedNotification 발송 대기 중인 알림 한 건입니다.
type queuedNotification struct {
	userID  string
	targets []model.NotificationTarget
	payload model.NotificationPayload

	// priorState / priorExisted 전송 실패 시 상태를 되돌리기 위한 관측 반영 전 스냅샷입니다.
	priorState   model.NotificationState
	priorExisted bool
}

// Dispatcher 수집 결과를 사용자별 알림으로 변환하여 배치 전송하는 다중 사용자 디스패처입니다.
//
// 사이클 구조:
//  1. PreloadForCycle — 감시 항목, 알림 대상, 알림 상태를 2+1회의 질의로 일괄 로드
//  2. ProcessResult  — 수집 결과마다 호출 (DB 접근 없음)
//  3. FlushNotifications — 대기열을 정확히 1회 비우며 배치 전송
//  4. PersistStates  — 상태 변경분 일괄 저장
type Dispatcher struct {
	watches  WatchReader
	states   StateReadWriter
	audits   AuditWriter
	adapters map[model.Channel]Adapter
	tracker  *Tracker
	limiter  *rate.Limiter
	opts     Options
	logger   *log.Entry

	mu       sync.Mutex
	queue    []queuedNotification
	watchers map[string][]model.WatchEntry        // 상품 ID -> 활성 감시 항목
	targets  map[string][]model.NotificationTarget // 사용자 ID -> 연결된 채널 대상
}

// NewDispatcher 디스패처를 생성합니다.
func NewDispatcher(watches WatchReader, states StateReadWriter, audits AuditWriter, adapters []Adapter, opts Options) *Dispatcher {
	byChannel := make(map[model.Channel]Adapter, len(adapters))
	for _, adapter := range adapters {
		byChannel[adapter.Name()] = adapter
	}

	return &Dispatcher{
		watches:  watches,
		states:   states,
		audits:   audits,
		adapters: byChannel,
		tracker:  NewTracker(),
		limiter:  rate.NewLimiter(rate.Every(opts.FlushBatchDelay), 1),
		opts:     opts,
		logger:   applog.WithComponent("dispatcher"),
	}
}

// PreloadForCycle 사이클에서 필요한 모든 데이터를 일괄 로드합니다.
//
// 활성 감시 항목 1회, 알림 대상 1회, 알림 상태 1회의 질의로 구성되며,
// 구독자(연결된 채널이 있는 감시자)가 1명 이상인 상품 ID 목록을 반환합니다.
// 스케줄러는 이 목록에 없는 상품의 스크래핑을 생략할 수 있습니다.
func (d *Dispatcher) PreloadForCycle(ctx context.Context, productIDs []string) ([]string, error) {
	watchers, err := d.watches.ActiveWatchersByProductIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	userIDSet := make(map[string]struct{})
	for _, entries := range watchers {
		for _, entry := range entries {
			userIDSet[entry.UserID] = struct{}{}
		}
	}
	userIDs := make([]string, 0, len(userIDSet))
	for userID := range userIDSet {
		userIDs = append(userIDs, userID)
	}

	targets, err := d.watches.NotificationTargets(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	states, err := d.states.LoadForProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	d.tracker.Preload(states)

	d.mu.Lock()
	d.watchers = watchers
	d.targets = targets
	d.mu.Unlock()

	var subscribed []string
	for productID, entries := range watchers {
		for _, entry := range entries {
			if len(targets[entry.UserID]) > 0 {
				subscribed = append(subscribed, productID)
				break
			}
		}
	}
	return subscribed, nil
}

// ProcessResult 단일 수집 결과를 처리합니다. DB 접근 없이 메모리 상태만 사용합니다.
//
// 모든 감시자에 대해 상태 갱신은 무조건 수행되며, 알림은
// 연결된 채널이 있고, 판매 중이며, 가격이 있고, 예산 이내일 때만 대기열에 추가됩니다.
func (d *Dispatcher) ProcessResult(product *model.ResolvedProduct, shop model.ShopConfig, result model.ProductResult) {
	d.mu.Lock()
	watchers := d.watchers[result.ProductID]
	d.mu.Unlock()

	for _, watcher := range watchers {
		prior, existed := d.tracker.Snapshot(watcher.UserID, result.ProductID, result.ShopID)
		notify := d.tracker.ShouldNotify(watcher.UserID, result.ProductID, result.ShopID, result, watcher.MaxPrice)
		d.tracker.UpdateTrackedState(watcher.UserID, result.ProductID, result.ShopID, result)

		if !notify {
			continue
		}

		d.mu.Lock()
		targets := d.targets[watcher.UserID]
		d.mu.Unlock()
		if len(targets) == 0 {
			continue
		}

		d.enqueue(queuedNotification{
			userID:  watcher.UserID,
			targets: targets,
			payload: model.NotificationPayload{
				ProductID:   result.ProductID,
				ProductName: product.Name,
				ShopID:      shop.ID,
				ShopName:    shop.Name,
				Price:       *result.Price,
				MaxPrice:    watcher.MaxPrice,
				ProductURL:  result.ProductURL,
			},
			priorState:   prior,
			priorExisted: existed,
		})
	}
}

func (d *Dispatcher) enqueue(item queuedNotification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, item)
}

// Saturated 대기열이 고수위를 넘었는지 여부입니다.
// 참인 동안 스케줄러는 새 스크래핑 투입을 일시 중지합니다(배압).
func (d *Dispatcher) Saturated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) >= d.opts.QueueHighWater
}

// FlushNotifications 대기열의 알림을 배치로 전송합니다. 사이클당 정확히 1회 호출됩니다.
//
// 배치 내 알림은 동시에 전송되고, 배치 사이에는 속도 제한기가 최소 간격을 보장합니다.
// 건별 성공은 MarkNotified를 호출하고, 건별 실패는 로그와 감사 기록만 남기고
// 상태를 되돌려 다음 사이클에 자동 재시도되도록 합니다.
func (d *Dispatcher) FlushNotifications(ctx context.Context) {
	d.mu.Lock()
	pending := d.queue
	d.queue = nil
	d.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	d.logger.WithField("count", len(pending)).Info("알림 발송을 시작합니다.")

	for start := 0; start < len(pending); start += d.opts.FlushBatchSize {
		if err := d.limiter.Wait(ctx); err != nil {
			d.logger.WithField("remaining", len(pending)-start).
				Warn("사이클이 중단되어 남은 알림 발송을 건너뜁니다. 다음 사이클에 재시도됩니다.")
			return
		}

		end := min(start+d.opts.FlushBatchSize, len(pending))

		var wg sync.WaitGroup
		for _, item := range pending[start:end] {
			wg.Add(1)
			go func(item queuedNotification) {
				defer wg.Done()
				d.deliver(ctx, item)
			}(item)
		}
		wg.Wait()
	}
}

// deliver 알림 한 건을 사용자의 모든 연결 채널로 전송하고 감사 레코드를 남깁니다.
func (d *Dispatcher) deliver(ctx context.Context, item queuedNotification) {
	now := time.Now()
	deliveries := make([]model.Delivery, 0, len(item.targets))
	succeeded := false

	for _, target := range item.targets {
		delivery := model.Delivery{
			Channel:       target.Channel,
			ChannelTarget: target.ChannelTarget,
			Attempts:      1,
		}

		adapter, ok := d.adapters[target.Channel]
		if !ok {
			delivery.Status = model.DeliveryFailed
			delivery.Error = "지원하지 않는 채널입니다"
			deliveries = append(deliveries, delivery)
			continue
		}

		if err := adapter.Send(ctx, target.ChannelTarget, item.payload); err != nil {
			delivery.Status = model.DeliveryFailed
			delivery.Error = err.Error()
			d.logger.WithFields(applog.Fields{
				"user":    item.userID,
				"channel": target.Channel,
				"error":   err.Error(),
			}).Warn("알림 전송에 실패하였습니다.")
		} else {
			sentAt := time.Now()
			delivery.Status = model.DeliverySent
			delivery.SentAt = &sentAt
			succeeded = true
		}
		deliveries = append(deliveries, delivery)
	}

	if succeeded {
		price := item.payload.Price
		d.tracker.MarkNotified(item.userID, item.payload.ProductID, item.payload.ShopID, &price, now)
	} else {
		// 전 채널 실패: 관측 반영 전 상태로 되돌려 다음 사이클에 다시 알림이 발화되도록 한다.
		d.tracker.Restore(item.userID, item.payload.ProductID, item.payload.ShopID, item.priorState, item.priorExisted)
	}

	status := model.DeliverySent
	if !succeeded {
		status = model.DeliveryFailed
	}
	audit := model.Notification{
		UserID:     item.userID,
		Status:     status,
		Payload:    item.payload,
		Deliveries: deliveries,
		CreatedAt:  now,
	}
	if err := d.audits.Insert(ctx, audit); err != nil {
		// 감사 기록 실패가 알림 파이프라인을 중단시키지는 않는다.
		d.logger.WithFields(applog.Fields{"user": item.userID, "error": err.Error()}).
			Error("알림 감사 레코드 기록에 실패하였습니다.")
	}
}

// PersistStates 사이클 동안 변경된 알림 상태를 일괄 저장합니다.
// 저장 실패 시 상태는 다음 사이클의 재관측으로 자연히 복구되므로 에러만 전파합니다.
func (d *Dispatcher) PersistStates(ctx context.Context) error {
	dirty := d.tracker.DrainDirty()
	if len(dirty) == 0 {
		return nil
	}
	return d.states.SaveAll(ctx, dirty)
}
