// Package scrape 상점별 상품 스크래핑 알고리즘과 요청 통제(Governor)를 담당합니다.
//
// 스크래퍼는 검색 → 후보 매칭 → 상품 페이지 검증의 순서로 진행하며,
// 어떤 실패도 밖으로 던지지 않고 항상 ProductResult를 발행합니다.
package scrape

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape/engine"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
	"github.com/darkkaiser/cardwatch-server/pkg/strutil"
)

// queryPlaceholder 검색 URL 템플릿에서 검색어로 치환되는 슬롯입니다.
const queryPlaceholder = "{query}"

// Scraper 단일 상점에 대한 상품 스크래핑 알고리즘입니다.
// 상점 설정은 사이클 진행 중 불변으로 취급되므로 Scraper는 동시 호출에 안전합니다.
type Scraper struct {
	shop      model.ShopConfig
	directHit *regexp.Regexp
	logger    *log.Entry
}

// NewScraper 지정된 상점 설정으로 Scraper를 생성합니다.
// directHitPattern은 설정 로드 시점에 검증되므로, 여기서의 컴파일 실패는 무시하고 비활성화합니다.
func NewScraper(shop model.ShopConfig) *Scraper {
	var directHit *regexp.Regexp
	if shop.DirectHitPattern != "" {
		if compiled, err := regexp.Compile(shop.DirectHitPattern); err == nil {
			directHit = compiled
		}
	}

	return &Scraper{
		shop:      shop,
		directHit: directHit,
		logger:    applog.WithComponentAndFields("scraper", applog.Fields{"shop": shop.ID}),
	}
}

// BuildSearchURL 검색 URL 템플릿에 검색어를 적용합니다.
// "{query}" 슬롯이 있으면 URL 인코딩된 검색어로 치환하고, 없으면 URL 끝에 덧붙입니다.
func (s *Scraper) BuildSearchURL(phrase string) string {
	encoded := url.QueryEscape(phrase)
	if strings.Contains(s.shop.SearchURL, queryPlaceholder) {
		return strings.ReplaceAll(s.shop.SearchURL, queryPlaceholder, encoded)
	}
	return s.shop.SearchURL + encoded
}

// ScrapeProduct 단일 (상점, 상품) 조합의 스크래핑을 수행합니다.
//
// 스크래퍼 경계: 어떤 실패(네트워크 오류, 셀렉터 실패, 패닉)도 밖으로 전파하지 않습니다.
// 복구 불가능한 오류는 로그를 남기고 "판매 중 아님" 결과로 변환되어,
// 하나의 상품 실패가 상점의 나머지 상품 처리를 오염시키지 않도록 합니다.
func (s *Scraper) ScrapeProduct(ctx context.Context, eng engine.Engine, product *model.ResolvedProduct) (result model.ProductResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(applog.Fields{"product": product.ID, "panic": fmt.Sprintf("%v", r)}).
				Error("스크래핑 중 패닉이 발생하였습니다. 판매 중 아님으로 처리합니다.")
			result = model.UnavailableResult(product.ID, s.shop.ID, time.Now())
		}
	}()

	result, err := s.scrape(ctx, eng, product)
	if err != nil {
		s.logger.WithFields(applog.Fields{"product": product.ID, "error": err.Error()}).
			Warn("스크래핑이 실패하였습니다. 판매 중 아님으로 처리합니다.")
		return model.UnavailableResult(product.ID, s.shop.ID, time.Now())
	}

	return result
}

func (s *Scraper) scrape(ctx context.Context, eng engine.Engine, product *model.ResolvedProduct) (model.ProductResult, error) {
	searchURL := s.BuildSearchURL(product.PrimaryPhrase())
	if err := eng.Goto(ctx, searchURL); err != nil {
		return model.ProductResult{}, err
	}

	// 검색 결과가 상품 페이지로 곧장 리다이렉트되는 상점: 현재 페이지를 상품 페이지로 간주하되,
	// 엉뚱한 상품으로의 리다이렉트를 막기 위해 상품명 검증을 수행합니다.
	if s.directHit != nil && s.directHit.MatchString(eng.CurrentURL()) {
		return s.scrapeProductPage(ctx, eng, product, eng.CurrentURL(), true)
	}

	search := &s.shop.Selectors.SearchPage

	// 후보 상품 블록을 DOM 순서대로 순회하며 첫 번째 매칭을 선택합니다.
	for _, article := range eng.ExtractAll(&search.Article) {
		rawURL, ok := article.Extract(&search.ProductURL)
		if !ok {
			continue
		}
		productURL, err := NormalizeURL(rawURL, s.shop.BaseURL)
		if err != nil {
			continue
		}

		if !s.candidateMatches(article, productURL, product) {
			continue
		}

		// 신뢰 가능한 검색 페이지: 가격과 판매 여부 신호를 모두 얻으면 상품 페이지 방문을 생략합니다.
		if search.Trusted && search.Price != nil {
			if result, ok := s.resultFromSearchPage(article, productURL, product); ok {
				return result, nil
			}
		}

		return s.scrapeProductPage(ctx, eng, product, productURL, false)
	}

	// 매칭되는 후보 없음: 정책상 실패이지 에러가 아니므로 "판매 중 아님"으로 기록합니다.
	s.logger.WithField("product", product.ID).Debug("검색 결과에서 매칭되는 상품이 없습니다.")
	return model.UnavailableResult(product.ID, s.shop.ID, time.Now()), nil
}

// candidateMatches 후보의 상품명이 검색 설정에 부합하는지 검사합니다.
// 상점이 상품명을 말줄임하는 경우를 대비해, 상품명 미추출 또는 문구 미포함 시
// URL 슬러그를 상품명 폴백으로 시도합니다. 단, 추출된 상품명에 제외 문구가 있으면
// 탈락이 최종입니다. 슬러그에는 제외 문구가 빠져 있을 수 있기 때문입니다.
func (s *Scraper) candidateMatches(article engine.Element, productURL string, product *model.ResolvedProduct) bool {
	if title, ok := article.Extract(&s.shop.Selectors.SearchPage.Title); ok && title != "" {
		if TitleExcluded(title, product) {
			return false
		}
		if TitleMatches(title, product) {
			return true
		}
	}
	return TitleMatches(slugTitle(productURL), product)
}

// slugTitle 상품 URL의 마지막 경로 세그먼트를 사람이 읽을 수 있는 제목 형태로 복원합니다.
func slugTitle(productURL string) string {
	return strutil.SlugToTitle(strutil.LastPathSegment(productURL))
}

// resultFromSearchPage 검색 페이지만으로 결과 확정을 시도합니다.
// 가격과 판매 여부 신호가 모두 확보된 경우에만 성공합니다.
func (s *Scraper) resultFromSearchPage(article engine.Element, productURL string, product *model.ResolvedProduct) (model.ProductResult, bool) {
	search := &s.shop.Selectors.SearchPage

	availableFired := len(search.Available) > 0 && article.Exists(search.Available)
	unavailableFired := len(search.Unavailable) > 0 && article.Exists(search.Unavailable)
	if !availableFired && !unavailableFired {
		return model.ProductResult{}, false
	}

	priceText, ok := article.Extract(search.Price)
	if !ok {
		return model.ProductResult{}, false
	}

	price := engine.ParsePrice(priceText, search.Price.Format)
	available := resolveAvailability(availableFired, unavailableFired, len(search.Available) > 0, len(search.Unavailable) > 0)

	return model.NewProductResult(product.ID, s.shop.ID, productURL, price, available, time.Now()), true
}

// scrapeProductPage 상품 상세 페이지에서 가격과 판매 여부를 확정합니다.
func (s *Scraper) scrapeProductPage(ctx context.Context, eng engine.Engine, product *model.ResolvedProduct, pageURL string, validateTitle bool) (model.ProductResult, error) {
	if eng.CurrentURL() != pageURL {
		if err := eng.Goto(ctx, pageURL); err != nil {
			return model.ProductResult{}, err
		}
	}

	productPage := &s.shop.Selectors.ProductPage

	// 리다이렉트 직행(direct hit)의 경우, 현재 페이지가 실제로 찾는 상품인지 검증합니다.
	if validateTitle && !s.productPageMatches(eng, product) {
		s.logger.WithFields(applog.Fields{"product": product.ID, "url": eng.CurrentURL()}).
			Debug("리다이렉트된 상품 페이지가 검색 설정에 부합하지 않습니다.")
		return model.UnavailableResult(product.ID, s.shop.ID, time.Now()), nil
	}

	availableFired := len(productPage.Available) > 0 && eng.Exists(productPage.Available)
	unavailableFired := len(productPage.Unavailable) > 0 && eng.Exists(productPage.Unavailable)
	available := resolveAvailability(availableFired, unavailableFired, len(productPage.Available) > 0, len(productPage.Unavailable) > 0)

	// 가격 추출 실패는 실패가 아닙니다: 판매 중이면서 가격 없음(null)도 그대로 발행됩니다.
	var price *float64
	if priceText, ok := eng.Extract(&productPage.Price); ok {
		price = engine.ParsePrice(priceText, productPage.Price.Format)
	}

	return model.NewProductResult(product.ID, s.shop.ID, eng.CurrentURL(), price, available, time.Now()), nil
}

// productPageMatches 상품 페이지의 제목(또는 URL 슬러그 폴백)이 검색 설정에 부합하는지 검사합니다.
// candidateMatches와 동일하게, 추출된 제목에 제외 문구가 있으면 슬러그 폴백 없이 탈락합니다.
func (s *Scraper) productPageMatches(eng engine.Engine, product *model.ResolvedProduct) bool {
	if title := s.shop.Selectors.ProductPage.Title; title != nil {
		if text, ok := eng.Extract(title); ok && text != "" {
			if TitleExcluded(text, product) {
				return false
			}
			if TitleMatches(text, product) {
				return true
			}
		}
	}
	return TitleMatches(slugTitle(eng.CurrentURL()), product)
}

// resolveAvailability 판매 여부 신호를 판정합니다.
//
// 규칙: unavailable 신호가 하나라도 발화하면 판매 중 아님(unavailable 우선).
// available 신호가 발화하면 판매 중. 둘 다 발화하지 않으면 판매 중 아님으로 간주하되,
// available 셀렉터가 아예 정의되지 않은 상점(unavailable 신호만 운용)에서는
// unavailable 신호의 부재를 판매 중으로 해석합니다.
func resolveAvailability(availableFired, unavailableFired, hasAvailableSelectors, hasUnavailableSelectors bool) bool {
	if unavailableFired {
		return false
	}
	if hasAvailableSelectors {
		return availableFired
	}
	return hasUnavailableSelectors
}
