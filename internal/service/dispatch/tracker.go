// Package dispatch 알림 상태 추적과 다중 사용자 알림 발송(배치/속도 제한)을 담당합니다.
package dispatch

import (
	"sync"
	"time"

	"github.com/darkkaiser/cardwatch-server/internal/model"
)

// Tracker (사용자, 상품, 상점) 조합별 알림 상태의 메모리 엔진입니다.
//
// 사이클 시작 시 저장소에서 프리로드되고 사이클 종료 시 변경분만 일괄 저장됩니다.
// 사이클 사이에는 이 메모리 상태가 기준(authoritative)입니다. 동시 호출에 안전합니다.
type Tracker struct {
	mu     sync.Mutex
	states map[string]model.NotificationState
	dirty  map[string]struct{}
}

// NewTracker 빈 상태의 Tracker를 생성합니다.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[string]model.NotificationState),
		dirty:  make(map[string]struct{}),
	}
}

// Preload 저장소에서 로드한 상태를 병합합니다. 메모리에 이미 있는 키는
// 메모리 쪽이 더 최신이므로 덮어쓰지 않습니다.
func (t *Tracker) Preload(states map[string]model.NotificationState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, state := range states {
		if _, ok := t.states[key]; !ok {
			t.states[key] = state
		}
	}
}

// ShouldNotify 현재 관측에 대해 알림을 보내야 하는지 판정합니다.
//
// 다음이 모두 참일 때만 true입니다:
//  1. 판매 중이며 가격이 사용자의 최대 가격 이하.
//  2. 이전 상태가 없거나(첫 관측), 직전에 판매 중이 아니었거나(재입고),
//     가격이 직전 가격보다 낮음(가격 하락). 동일 가격의 재등장은 알림을 발생시키지 않습니다.
func (t *Tracker) ShouldNotify(userID, productID, shopID string, result model.ProductResult, maxPrice float64) bool {
	if !result.IsAvailable || result.Price == nil || *result.Price > maxPrice {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[model.StateKey(userID, productID, shopID)]
	if !ok {
		return true
	}
	if !state.WasAvailable {
		return true
	}
	return state.LastPrice != nil && *result.Price < *state.LastPrice
}

// UpdateTrackedState 알림 여부와 무관하게 항상 호출되어 관측 결과를 상태에 반영합니다.
func (t *Tracker) UpdateTrackedState(userID, productID, shopID string, result model.ProductResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := model.StateKey(userID, productID, shopID)
	state, ok := t.states[key]
	if !ok {
		state = model.NotificationState{
			Key:       key,
			UserID:    userID,
			ProductID: productID,
			ShopID:    shopID,
		}
	}

	state.WasAvailable = result.IsAvailable
	state.LastPrice = result.Price

	t.states[key] = state
	t.dirty[key] = struct{}{}
}

// MarkNotified 알림 발송 성공을 상태에 반영합니다.
func (t *Tracker) MarkNotified(userID, productID, shopID string, price *float64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := model.StateKey(userID, productID, shopID)
	state, ok := t.states[key]
	if !ok {
		state = model.NotificationState{
			Key:       key,
			UserID:    userID,
			ProductID: productID,
			ShopID:    shopID,
		}
	}

	state.LastNotified = &now
	state.LastPrice = price
	state.WasAvailable = true

	t.states[key] = state
	t.dirty[key] = struct{}{}
}

// Snapshot 키의 현재 상태 사본을 반환합니다. 두 번째 반환값은 상태 존재 여부입니다.
func (t *Tracker) Snapshot(userID, productID, shopID string) (model.NotificationState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[model.StateKey(userID, productID, shopID)]
	return state, ok
}

// Restore 키의 상태를 이전 스냅샷으로 되돌립니다.
//
// 알림 전송 실패 시 이미 반영된 관측 상태를 되돌려, 다음 사이클의 동일 관측에서
// ShouldNotify가 다시 참이 되도록(자동 재시도) 보장합니다.
func (t *Tracker) Restore(userID, productID, shopID string, prior model.NotificationState, existed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := model.StateKey(userID, productID, shopID)
	if existed {
		t.states[key] = prior
		t.dirty[key] = struct{}{}
		return
	}

	delete(t.states, key)
	delete(t.dirty, key)
}

// DrainDirty 마지막 호출 이후 변경된 상태들을 반환하고 변경 추적을 초기화합니다.
// 저장이 실패하면 다음 사이클의 변경분에 다시 포함되도록 호출자가 재관측에 의존합니다.
func (t *Tracker) DrainDirty() []model.NotificationState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.dirty) == 0 {
		return nil
	}

	drained := make([]model.NotificationState, 0, len(t.dirty))
	for key := range t.dirty {
		if state, ok := t.states[key]; ok {
			drained = append(drained, state)
		}
	}
	t.dirty = make(map[string]struct{})
	return drained
}
