// Package engine 상점 페이지 네비게이션과 DOM 질의를 담당하는 엔진 계층입니다.
//
// 정적 페이지용 StaticEngine과 JavaScript 렌더링이 필요한 페이지용 HeadlessEngine이
// 동일한 Engine 인터페이스를 구현하며, 스크래퍼는 구체 엔진을 알지 못한 채
// 이 인터페이스에만 의존합니다.
package engine

import (
	"context"

	"github.com/darkkaiser/cardwatch-server/internal/model"
)

// Engine 상점 페이지를 가져오고 셀렉터 질의를 수행하는 인터페이스입니다.
//
// 사용 계약:
//   - Goto 호출이 성공해야 이후의 질의 메서드가 유효한 결과를 반환합니다.
//   - 사용이 끝나면 반드시 Close를 호출하여 점유한 리소스(브라우저 탭 등)를 해제해야 합니다.
type Engine interface {
	// Goto 지정된 URL로 이동하여 페이지를 로드합니다. 네비게이션 제한 시간은 15초입니다.
	Goto(ctx context.Context, url string) error

	// CurrentURL 리다이렉트가 반영된 현재 페이지의 최종 URL을 반환합니다.
	CurrentURL() string

	// Extract 셀렉터의 폴백 목록을 순서대로 시도하여 첫 번째 유효한 추출 결과를 반환합니다.
	Extract(sel *model.Selector) (string, bool)

	// ExtractAll 셀렉터에 일치하는 모든 요소를 반환합니다. (검색 결과의 상품 블록 수집용)
	ExtractAll(sel *model.Selector) []Element

	// Exists 셀렉터 목록 중 하나라도 페이지에서 일치하는 요소가 있는지 확인합니다.
	Exists(sels model.SelectorList) bool

	// Close 엔진이 점유한 리소스를 해제합니다. 모든 종료 경로에서 호출이 보장되어야 합니다.
	Close() error
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var (
	_ Engine = (*StaticEngine)(nil)
	_ Engine = (*HeadlessEngine)(nil)
)
