// Package strutil 문자열 처리를 위한 유틸리티 함수들을 제공합니다.
package strutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer 악센트(결합 부호)를 제거하는 변환기입니다.
//
// NFD로 분해하여 결합 부호(Mn)를 걷어낸 뒤 NFC로 재결합합니다.
// 예: "Pokémon" -> "Pokemon", "Zestaw Dodatkowy Ogień" -> "Zestaw Dodatkowy Ogien"
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeSpaces 문자열의 앞뒤 공백을 제거하고 연속된 공백을 하나로 축약합니다.
// 예: "  hello   world  " -> "hello world"
func NormalizeSpaces(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// Fold 상품명 비교를 위한 정규화 형태를 반환합니다.
//
// 소문자 변환, 악센트 제거, 연속 공백 축약을 모두 적용하므로
// 반환값끼리는 단순 부분 문자열 검사로 대소문자/악센트 무시 매칭이 가능합니다.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		// 변환 실패 시 원본으로 폴백합니다. (잘못된 UTF-8 등 극히 드문 경우)
		folded = s
	}
	return NormalizeSpaces(strings.ToLower(folded))
}

// EqualFold 두 문자열이 정규화(Fold) 기준으로 동일한지 검사합니다.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// SlugToTitle URL 슬러그를 사람이 읽을 수 있는 제목 형태로 복원합니다.
// 예: "pokemon-tcg-151-booster-bundle" -> "pokemon tcg 151 booster bundle"
func SlugToTitle(slug string) string {
	return NormalizeSpaces(strings.ReplaceAll(slug, "-", " "))
}

// LastPathSegment URL 경로의 마지막 세그먼트를 반환합니다.
// 쿼리 문자열과 끝의 슬래시는 무시합니다.
func LastPathSegment(path string) string {
	if idx := strings.IndexAny(path, "?#"); idx != -1 {
		path = path[:idx]
	}
	path = strings.TrimRight(path, "/")
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		return path[idx+1:]
	}
	return path
}
