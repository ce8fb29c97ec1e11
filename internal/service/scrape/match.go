package scrape

import (
	"strings"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	"github.com/darkkaiser/cardwatch-server/pkg/strutil"
)

// TitleMatches 후보 상품명이 확정된 검색 설정에 부합하는지 검사합니다.
//
// 매칭 정책 (대소문자/악센트 무시, 연속 공백 축약):
//   - 모든 검색 문구(Phrases)가 상품명에 부분 문자열로 포함되어야 합니다. (AND)
//   - 제외 문구(Exclude)가 하나라도 포함되면 탈락합니다.
func TitleMatches(title string, product *model.ResolvedProduct) bool {
	folded := strutil.Fold(title)
	if folded == "" {
		return false
	}

	for _, phrase := range product.Phrases {
		if !strings.Contains(folded, strutil.Fold(phrase)) {
			return false
		}
	}

	for _, excluded := range product.Exclude {
		if excluded == "" {
			continue
		}
		if strings.Contains(folded, strutil.Fold(excluded)) {
			return false
		}
	}

	return true
}

// TitleExcluded 상품명에 제외 문구(Exclude)가 하나라도 포함되어 있는지 검사합니다.
// TitleMatches와 동일하게 대소문자/악센트 무시, 연속 공백 축약 기준으로 비교합니다.
func TitleExcluded(title string, product *model.ResolvedProduct) bool {
	folded := strutil.Fold(title)

	for _, excluded := range product.Exclude {
		if excluded == "" {
			continue
		}
		if strings.Contains(folded, strutil.Fold(excluded)) {
			return true
		}
	}

	return false
}
