package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/darkkaiser/cardwatch-server/internal/model"
)

// 가격 문자열에서 숫자 토큰을 찾기 위한 로케일별 정규식입니다.
// 통화 기호와 단위 표기("zł", "PLN", "$" 등)는 자연스럽게 무시됩니다.
var (
	// european: 1.299,95 / 79 / 79,50 (천 단위 '.', 소수 구분 ',')
	europeanPriceRegex = regexp.MustCompile(`\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?`)

	// us: 1,299.95 / 79 / 79.50 (천 단위 ',', 소수 구분 '.')
	usPriceRegex = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?`)
)

// ParsePrice 로케일 형식에 맞추어 가격 문자열을 숫자로 변환합니다.
//
// 형식이 지정되지 않은 경우 european으로 간주합니다. (폴란드 상점 기본값)
// 숫자 토큰을 찾지 못하거나 변환 결과가 유효한 수가 아니면 nil을 반환합니다.
func ParsePrice(text string, format model.PriceFormat) *float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var normalized string
	switch format {
	case model.PriceFormatUS:
		match := usPriceRegex.FindString(text)
		if match == "" {
			return nil
		}
		normalized = strings.ReplaceAll(match, ",", "")

	default: // european
		match := europeanPriceRegex.FindString(text)
		if match == "" {
			return nil
		}
		normalized = strings.ReplaceAll(match, ".", "")
		normalized = strings.ReplaceAll(normalized, ",", ".")
	}

	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil
	}

	return &price
}
