package model

import (
	"encoding/json"
	"fmt"
)

// EngineKind 상점 페이지를 가져오는 엔진의 종류입니다.
type EngineKind string

const (
	// EngineStaticHTML HTTP 클라이언트와 HTML 파서만으로 처리 가능한 정적 페이지용 엔진입니다.
	EngineStaticHTML EngineKind = "static-html"

	// EngineHeadlessBrowser JavaScript 렌더링이 필요한 페이지를 위한 헤드리스 브라우저 엔진입니다.
	EngineHeadlessBrowser EngineKind = "headless-browser"
)

// FetchingTier 상점의 응답 속도 등급입니다. 스케줄러가 스크래핑 주기를 결정하는 데 사용합니다.
type FetchingTier string

const (
	TierSuperSlow FetchingTier = "super-slow"
	TierSlow      FetchingTier = "slow"
	TierFast      FetchingTier = "fast"
	TierSuperFast FetchingTier = "super-fast"
)

// CycleMultiplier 이 등급의 상점이 몇 번의 스케줄러 틱마다 스크래핑되는지를 반환합니다.
// super-fast는 매 틱, 느린 등급일수록 2의 거듭제곱 배수로 주기가 길어집니다.
func (t FetchingTier) CycleMultiplier() int {
	switch t {
	case TierSuperFast:
		return 1
	case TierFast:
		return 2
	case TierSlow:
		return 4
	case TierSuperSlow:
		return 8
	default:
		return 1
	}
}

// SelectorType DOM 질의 방식의 종류입니다.
type SelectorType string

const (
	SelectorCSS   SelectorType = "css"
	SelectorXPath SelectorType = "xpath"
	SelectorText  SelectorType = "text"
)

// ExtractMode 선택된 요소에서 무엇을 추출할지 지정합니다.
type ExtractMode string

const (
	ExtractText      ExtractMode = "text"
	ExtractHref      ExtractMode = "href"
	ExtractInnerHTML ExtractMode = "innerHTML"
)

// PriceFormat 가격 문자열의 로케일 형식입니다.
type PriceFormat string

const (
	PriceFormatEuropean PriceFormat = "european" // 1.299,95
	PriceFormatUS       PriceFormat = "us"       // 1,299.95
)

// StringList JSON에서 단일 문자열 또는 문자열 배열 양쪽을 모두 허용하는 목록 타입입니다.
type StringList []string

// UnmarshalJSON "value": "a" 와 "value": ["a", "b"] 형태를 모두 수용합니다.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("문자열 또는 문자열 배열이어야 합니다: %w", err)
	}
	*l = StringList(many)
	return nil
}

// Selector 상점 페이지에서 단일 값을 추출하기 위한 질의 명세입니다.
//
// Values는 순서가 있는 폴백 목록으로, 앞선 질의가 실패하거나 빈 값을 돌려주면
// 다음 질의를 시도합니다. 목록을 모두 소진하면 추출 결과는 null로 간주됩니다.
type Selector struct {
	Type    SelectorType `json:"type"`
	Values  StringList   `json:"value"`
	Extract ExtractMode  `json:"extract,omitempty"`
	Format  PriceFormat  `json:"format,omitempty"`

	// MatchText 설정된 경우, 추출된 텍스트가 이 리터럴과 (대소문자 무시,
	// 공백 정규화 기준으로) 동일할 때만 추출 성공으로 간주합니다.
	MatchText string `json:"matchText,omitempty"`
}

// SelectorList JSON에서 단일 Selector 객체 또는 Selector 배열 양쪽을 허용하는 목록 타입입니다.
// 판매 여부(available/unavailable) 신호처럼 복수의 독립 신호를 정의할 때 사용됩니다.
type SelectorList []Selector

// UnmarshalJSON 단일 객체와 배열 형태를 모두 수용합니다.
func (l *SelectorList) UnmarshalJSON(data []byte) error {
	var single Selector
	if err := json.Unmarshal(data, &single); err == nil && single.Type != "" {
		*l = SelectorList{single}
		return nil
	}

	var many []Selector
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("셀렉터 객체 또는 객체 배열이어야 합니다: %w", err)
	}
	*l = SelectorList(many)
	return nil
}

// SearchPageSelectors 검색 결과 페이지에서 후보 상품을 수집하기 위한 셀렉터 모음입니다.
type SearchPageSelectors struct {
	// Article 검색 결과 내 개별 상품 블록을 선택합니다.
	Article Selector `json:"article" validate:"required"`

	// ProductURL 상품 상세 페이지 링크를 추출합니다. (Article 기준 상대 질의)
	ProductURL Selector `json:"productUrl" validate:"required"`

	// Title 상품명을 추출합니다. (Article 기준 상대 질의)
	Title Selector `json:"title" validate:"required"`

	// Price 검색 페이지에 노출된 가격 셀렉터입니다. (선택)
	Price *Selector `json:"price,omitempty"`

	// Available / Unavailable 판매 여부 신호입니다. (선택, Article 기준 상대 질의)
	Available   SelectorList `json:"available,omitempty"`
	Unavailable SelectorList `json:"unavailable,omitempty"`

	// Trusted true인 경우, 검색 페이지에서 가격과 판매 여부 신호를 모두 얻으면
	// 상품 상세 페이지 방문을 생략하고 결과를 확정합니다.
	Trusted bool `json:"trusted,omitempty"`
}

// ProductPageSelectors 상품 상세 페이지에서 정보를 추출하기 위한 셀렉터 모음입니다.
type ProductPageSelectors struct {
	Title       *Selector    `json:"title,omitempty"`
	Price       Selector     `json:"price" validate:"required"`
	Available   SelectorList `json:"available,omitempty"`
	Unavailable SelectorList `json:"unavailable,omitempty"`
}

// ShopSelectors 상점의 전체 셀렉터 명세입니다.
type ShopSelectors struct {
	SearchPage  SearchPageSelectors  `json:"searchPage" validate:"required"`
	ProductPage ProductPageSelectors `json:"productPage" validate:"required"`
}

// AntiBotConfig 상점별 봇 차단 회피 정책입니다.
type AntiBotConfig struct {
	// RequestDelayMs 각 네비게이션 전 대기 시간(밀리초)입니다. 실제 대기 시간은
	// 요청 분산을 위해 ±30% 범위의 균등 지터가 적용됩니다. (0: 대기 없음)
	RequestDelayMs int `json:"requestDelayMs,omitempty" validate:"min=0"`

	// MaxConcurrency 이 상점에 대한 동시 상품 스크래핑 수의 상한입니다. (0: 전역 기본값 사용)
	MaxConcurrency int `json:"maxConcurrency,omitempty" validate:"min=0"`

	// UseProxy 전역 프록시가 활성화된 경우, 이 상점의 요청을 프록시로 우회시킬지 여부입니다.
	UseProxy bool `json:"useProxy,omitempty"`
}

// ShopConfig 단일 상점의 스크래핑 설정입니다. 사이클 진행 중에는 불변으로 취급됩니다.
type ShopConfig struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	BaseURL string `json:"baseUrl" validate:"required,url"`

	// SearchURL 검색 URL 템플릿입니다. "{query}" 슬롯이 있으면 검색어로 치환되고,
	// 없으면 검색어가 URL 끝에 덧붙여집니다.
	SearchURL string `json:"searchUrl" validate:"required"`

	Engine       EngineKind   `json:"engine" validate:"required,oneof=static-html headless-browser"`
	FetchingTier FetchingTier `json:"fetchingTier" validate:"required,oneof=super-slow slow fast super-fast"`

	// DirectHitPattern 검색 결과가 상품 페이지로 리다이렉트되는 상점을 위한 정규식입니다.
	// 네비게이션 후의 현재 URL이 이 패턴에 일치하면 검색 결과 수집을 생략하고
	// 현재 페이지를 상품 페이지로 간주합니다.
	DirectHitPattern string `json:"directHitPattern,omitempty"`

	AntiBot   AntiBotConfig `json:"antiBot,omitempty"`
	Disabled  bool          `json:"disabled,omitempty"`
	Selectors ShopSelectors `json:"selectors" validate:"required"`
}
