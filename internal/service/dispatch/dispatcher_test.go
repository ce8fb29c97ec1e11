package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

type fakeWatchReader struct {
	watchers map[string][]model.WatchEntry
	targets  map[string][]model.NotificationTarget
}

func (f *fakeWatchReader) ActiveWatchersByProductIDs(_ context.Context, _ []string) (map[string][]model.WatchEntry, error) {
	return f.watchers, nil
}

func (f *fakeWatchReader) NotificationTargets(_ context.Context, _ []string) (map[string][]model.NotificationTarget, error) {
	return f.targets, nil
}

type fakeStateStore struct {
	mu     sync.Mutex
	loaded map[string]model.NotificationState
	saved  []model.NotificationState
}

func (f *fakeStateStore) LoadForProducts(_ context.Context, _ []string) (map[string]model.NotificationState, error) {
	if f.loaded == nil {
		return map[string]model.NotificationState{}, nil
	}
	return f.loaded, nil
}

func (f *fakeStateStore) SaveAll(_ context.Context, states []model.NotificationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, states...)
	return nil
}

type fakeAuditWriter struct {
	mu      sync.Mutex
	records []model.Notification
}

func (f *fakeAuditWriter) Insert(_ context.Context, notification model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, notification)
	return nil
}

func (f *fakeAuditWriter) all() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.records...)
}

// fakeAdapter 전송 내역을 기록하는 채널 어댑터입니다. fail이 참이면 모든 전송이 실패합니다.
type fakeAdapter struct {
	channel model.Channel
	fail    bool

	mu   sync.Mutex
	sent []model.NotificationPayload
}

func (f *fakeAdapter) Name() model.Channel { return f.channel }

func (f *fakeAdapter) Send(_ context.Context, _ string, payload model.NotificationPayload) error {
	if f.fail {
		return apperrors.New(apperrors.Unavailable, "채널 응답 없음")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// timingAdapter 전송 시각만 기록하는 채널 어댑터입니다. 배치 간격 검증에 사용합니다.
type timingAdapter struct {
	channel model.Channel

	mu    sync.Mutex
	times []time.Time
}

func (f *timingAdapter) Name() model.Channel { return f.channel }

func (f *timingAdapter) Send(_ context.Context, _ string, _ model.NotificationPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = append(f.times, time.Now())
	return nil
}

func (f *timingAdapter) sendTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]time.Time(nil), f.times...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func testOptions() Options {
	return Options{
		FlushBatchSize:  25,
		FlushBatchDelay: time.Millisecond,
		QueueHighWater:  500,
	}
}

func testWatchData() *fakeWatchReader {
	return &fakeWatchReader{
		watchers: map[string][]model.WatchEntry{
			"surging-sparks-booster-box": {
				{UserID: "user-1", ProductID: "surging-sparks-booster-box", MaxPrice: 700, IsActive: true},
				{UserID: "user-2", ProductID: "surging-sparks-booster-box", MaxPrice: 600, IsActive: true},
				{UserID: "user-bez-kanalu", ProductID: "surging-sparks-booster-box", MaxPrice: 700, IsActive: true},
			},
		},
		targets: map[string][]model.NotificationTarget{
			"user-1": {{UserID: "user-1", Channel: model.ChannelTelegram, ChannelTarget: "111"}},
			"user-2": {{UserID: "user-2", Channel: model.ChannelTelegram, ChannelTarget: "222"}},
		},
	}
}

func testResolvedProduct() *model.ResolvedProduct {
	return &model.ResolvedProduct{
		Product: model.Product{ID: "surging-sparks-booster-box", Name: "Surging Sparks Booster Box"},
		Phrases: []string{"surging sparks", "booster box"},
	}
}

func testShop() model.ShopConfig {
	return model.ShopConfig{ID: "sklep-testowy", Name: "Sklep Testowy"}
}

func availableResult(price float64) model.ProductResult {
	return model.NewProductResult("surging-sparks-booster-box", "sklep-testowy",
		"https://sklep.example.pl/produkt/x", &price, true, time.Now())
}

func TestDispatcher_PreloadForCycle(t *testing.T) {
	t.Parallel()

	t.Run("구독자가 있는 상품만 반환", func(t *testing.T) {
		t.Parallel()

		watches := testWatchData()
		watches.watchers["paldean-fates-tin"] = []model.WatchEntry{
			{UserID: "user-bez-kanalu", ProductID: "paldean-fates-tin", MaxPrice: 100, IsActive: true},
		}

		d := NewDispatcher(watches, &fakeStateStore{}, &fakeAuditWriter{}, nil, testOptions())

		subscribed, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box", "paldean-fates-tin"})
		require.NoError(t, err)

		// 연결된 채널이 없는 사용자만 감시하는 상품은 구독 목록에서 빠진다.
		assert.Equal(t, []string{"surging-sparks-booster-box"}, subscribed)
	})
}

func TestDispatcher_ProcessResult(t *testing.T) {
	t.Parallel()

	t.Run("예산 이내의 감시자에게만 알림 대기열 추가", func(t *testing.T) {
		t.Parallel()

		telegram := &fakeAdapter{channel: model.ChannelTelegram}
		d := NewDispatcher(testWatchData(), &fakeStateStore{}, &fakeAuditWriter{}, []Adapter{telegram}, testOptions())

		_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
		require.NoError(t, err)

		// 가격 649.99: user-1(최대 700)만 예산 이내이고, user-2(최대 600)는 초과,
		// user-bez-kanalu는 채널 미연결로 제외된다.
		d.ProcessResult(testResolvedProduct(), testShop(), availableResult(649.99))
		d.FlushNotifications(context.Background())

		assert.Equal(t, 1, telegram.sentCount())
	})

	t.Run("판매 중 아님 결과는 대기열에 추가되지 않음", func(t *testing.T) {
		t.Parallel()

		telegram := &fakeAdapter{channel: model.ChannelTelegram}
		d := NewDispatcher(testWatchData(), &fakeStateStore{}, &fakeAuditWriter{}, []Adapter{telegram}, testOptions())

		_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
		require.NoError(t, err)

		d.ProcessResult(testResolvedProduct(), testShop(), model.UnavailableResult("surging-sparks-booster-box", "sklep-testowy", time.Now()))
		d.FlushNotifications(context.Background())

		assert.Zero(t, telegram.sentCount())
	})

	t.Run("중복 제거: 사이클을 거듭해도 동일 조건은 1회만 알림", func(t *testing.T) {
		t.Parallel()

		telegram := &fakeAdapter{channel: model.ChannelTelegram}
		d := NewDispatcher(testWatchData(), &fakeStateStore{}, &fakeAuditWriter{}, []Adapter{telegram}, testOptions())

		for cycle := 0; cycle < 3; cycle++ {
			_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
			require.NoError(t, err)

			d.ProcessResult(testResolvedProduct(), testShop(), availableResult(649.99))
			d.FlushNotifications(context.Background())
			require.NoError(t, d.PersistStates(context.Background()))
		}

		assert.Equal(t, 1, telegram.sentCount())
	})

	t.Run("가격 하락 시 재알림", func(t *testing.T) {
		t.Parallel()

		telegram := &fakeAdapter{channel: model.ChannelTelegram}
		d := NewDispatcher(testWatchData(), &fakeStateStore{}, &fakeAuditWriter{}, []Adapter{telegram}, testOptions())

		_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
		require.NoError(t, err)

		d.ProcessResult(testResolvedProduct(), testShop(), availableResult(649.99))
		d.FlushNotifications(context.Background())

		d.ProcessResult(testResolvedProduct(), testShop(), availableResult(599.99))
		d.FlushNotifications(context.Background())

		// user-1: 649.99 → 599.99 두 건, user-2(최대 600): 599.99 한 건.
		assert.Equal(t, 3, telegram.sentCount())
	})
}

func TestDispatcher_FlushNotifications(t *testing.T) {
	t.Parallel()

	t.Run("전송 실패 시 상태가 전진하지 않아 다음 사이클에 재시도", func(t *testing.T) {
		t.Parallel()

		telegram := &fakeAdapter{channel: model.ChannelTelegram, fail: true}
		audits := &fakeAuditWriter{}
		d := NewDispatcher(testWatchData(), &fakeStateStore{}, audits, []Adapter{telegram}, testOptions())

		_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
		require.NoError(t, err)

		d.ProcessResult(testResolvedProduct(), testShop(), availableResult(649.99))
		d.FlushNotifications(context.Background())

		// 실패한 전송은 감사 레코드에 남는다.
		records := audits.all()
		require.Len(t, records, 1)
		assert.Equal(t, model.DeliveryFailed, records[0].Status)
		require.Len(t, records[0].Deliveries, 1)
		assert.NotEmpty(t, records[0].Deliveries[0].Error)

		// 다음 사이클의 동일 관측에서 다시 발화된다.
		telegram.fail = false
		d.ProcessResult(testResolvedProduct(), testShop(), availableResult(649.99))
		d.FlushNotifications(context.Background())

		assert.Equal(t, 1, telegram.sentCount())
	})

	t.Run("대기열은 사이클당 1회만 비워짐", func(t *testing.T) {
		t.Parallel()

		telegram := &fakeAdapter{channel: model.ChannelTelegram}
		d := NewDispatcher(testWatchData(), &fakeStateStore{}, &fakeAuditWriter{}, []Adapter{telegram}, testOptions())

		_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
		require.NoError(t, err)

		d.ProcessResult(testResolvedProduct(), testShop(), availableResult(649.99))
		d.FlushNotifications(context.Background())
		d.FlushNotifications(context.Background())

		assert.Equal(t, 1, telegram.sentCount())
	})

	t.Run("성공 시 감사 레코드에 전송 시각 기록", func(t *testing.T) {
		t.Parallel()

		telegram := &fakeAdapter{channel: model.ChannelTelegram}
		audits := &fakeAuditWriter{}
		d := NewDispatcher(testWatchData(), &fakeStateStore{}, audits, []Adapter{telegram}, testOptions())

		_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
		require.NoError(t, err)

		d.ProcessResult(testResolvedProduct(), testShop(), availableResult(649.99))
		d.FlushNotifications(context.Background())

		records := audits.all()
		require.Len(t, records, 1)
		assert.Equal(t, model.DeliverySent, records[0].Status)
		require.Len(t, records[0].Deliveries, 1)
		assert.Equal(t, model.DeliverySent, records[0].Deliveries[0].Status)
		assert.NotNil(t, records[0].Deliveries[0].SentAt)
	})

	t.Run("배치 크기를 넘는 대기열은 배치 사이 최소 간격을 두고 전송", func(t *testing.T) {
		t.Parallel()

		const total = 60
		opts := Options{
			FlushBatchSize:  25,
			FlushBatchDelay: 100 * time.Millisecond,
			QueueHighWater:  500,
		}

		// 상품 60개를 각각 한 명의 구독자가 감시하여 알림 60건을 대기열에 쌓는다.
		watches := &fakeWatchReader{
			watchers: map[string][]model.WatchEntry{},
			targets: map[string][]model.NotificationTarget{
				"user-1": {{UserID: "user-1", Channel: model.ChannelTelegram, ChannelTarget: "111"}},
			},
		}
		productIDs := make([]string, 0, total)
		for i := 0; i < total; i++ {
			id := fmt.Sprintf("produkt-%02d", i)
			productIDs = append(productIDs, id)
			watches.watchers[id] = []model.WatchEntry{
				{UserID: "user-1", ProductID: id, MaxPrice: 700, IsActive: true},
			}
		}

		telegram := &timingAdapter{channel: model.ChannelTelegram}
		d := NewDispatcher(watches, &fakeStateStore{}, &fakeAuditWriter{}, []Adapter{telegram}, opts)

		_, err := d.PreloadForCycle(context.Background(), productIDs)
		require.NoError(t, err)

		price := 649.99
		for _, id := range productIDs {
			product := &model.ResolvedProduct{Product: model.Product{ID: id, Name: id}}
			result := model.NewProductResult(id, "sklep-testowy", "https://sklep.example.pl/produkt/"+id, &price, true, time.Now())
			d.ProcessResult(product, testShop(), result)
		}

		d.FlushNotifications(context.Background())

		times := telegram.sendTimes()
		require.Len(t, times, total)

		// 60건 / 배치 25건 = 3개 배치. 시각순으로 25번째, 50번째 전송이 각각
		// 두 번째, 세 번째 배치의 시작이며, 배치 시작 사이에는 최소 간격이 지켜져야 한다.
		// 고루틴 기동 지연을 감안해 약간의 여유를 둔다.
		tolerance := 20 * time.Millisecond
		assert.GreaterOrEqual(t, times[opts.FlushBatchSize].Sub(times[0]), opts.FlushBatchDelay-tolerance)
		assert.GreaterOrEqual(t, times[2*opts.FlushBatchSize].Sub(times[opts.FlushBatchSize]), opts.FlushBatchDelay-tolerance)
		assert.GreaterOrEqual(t, times[total-1].Sub(times[0]), 2*(opts.FlushBatchDelay-tolerance))
	})
}

func TestDispatcher_Saturated(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.QueueHighWater = 2

	telegram := &fakeAdapter{channel: model.ChannelTelegram}
	d := NewDispatcher(testWatchData(), &fakeStateStore{}, &fakeAuditWriter{}, []Adapter{telegram}, opts)

	_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
	require.NoError(t, err)

	assert.False(t, d.Saturated())

	// user-1과 user-2 모두 예산 이내인 가격으로 2건을 대기열에 쌓는다.
	d.ProcessResult(testResolvedProduct(), testShop(), availableResult(549.99))
	assert.True(t, d.Saturated())

	d.FlushNotifications(context.Background())
	assert.False(t, d.Saturated())
}

func TestDispatcher_PersistStates(t *testing.T) {
	t.Parallel()

	telegram := &fakeAdapter{channel: model.ChannelTelegram}
	states := &fakeStateStore{}
	d := NewDispatcher(testWatchData(), states, &fakeAuditWriter{}, []Adapter{telegram}, testOptions())

	_, err := d.PreloadForCycle(context.Background(), []string{"surging-sparks-booster-box"})
	require.NoError(t, err)

	d.ProcessResult(testResolvedProduct(), testShop(), availableResult(649.99))
	d.FlushNotifications(context.Background())
	require.NoError(t, d.PersistStates(context.Background()))

	// 감시자 3명 모두의 상태가 갱신되었다. (알림 여부와 무관하게 updateTrackedState는 항상 수행)
	assert.Len(t, states.saved, 3)

	// 변경분은 1회만 저장된다.
	require.NoError(t, d.PersistStates(context.Background()))
	assert.Len(t, states.saved, 3)
}
