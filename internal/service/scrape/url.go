package scrape

import (
	"net/url"
	"strings"

	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

// NormalizeURL 검색 결과에서 추출된 상품 링크를 상점 기준 URL에 대해 절대 URL로 정규화합니다.
//
// 수용하는 입력 형태:
//   - 절대 URL:           https://sklep.pl/produkt/x
//   - 프로토콜 상대 URL:  //sklep.pl/produkt/x
//   - 절대 경로:          /produkt/x
//   - 상대 경로:          produkt/x
//
// 이미 절대 URL인 입력에 대해서는 멱등하게 동작합니다.
func NormalizeURL(href, baseURL string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", apperrors.New(apperrors.InvalidInput, "상품 링크가 비어 있습니다")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.InvalidInput, "상점 기준 URL 형식이 올바르지 않습니다: '%s'", baseURL)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.InvalidInput, "상품 링크 형식이 올바르지 않습니다: '%s'", href)
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme == "" || resolved.Host == "" {
		return "", apperrors.Newf(apperrors.InvalidInput, "상품 링크를 절대 URL로 정규화할 수 없습니다: '%s'", href)
	}

	return resolved.String(), nil
}
