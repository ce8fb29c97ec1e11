package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// LoadShopConfigs 지정된 디렉토리의 모든 상점 설정 파일(*.json)을 읽어 반환합니다.
//
// 파일 하나가 상점 하나에 대응합니다. 형식이 잘못되었거나 유효성 검증에 실패한 파일이
// 하나라도 있으면 전체 로드가 실패합니다. 부분적으로만 로드된 상점 집합으로 구동되는 것보다
// 구동 자체를 거부하는 편이 운영상 안전하기 때문입니다.
// disabled로 표시된 상점은 검증은 수행하되 결과 목록에서 제외됩니다.
func LoadShopConfigs(dir string) ([]model.ShopConfig, error) {
	logger := applog.WithComponent("config")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, fmt.Sprintf("상점 설정 디렉토리를 읽을 수 없습니다: '%s'", dir))
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		filenames = append(filenames, entry.Name())
	}
	// 로드 순서를 결정적으로 유지한다.
	sort.Strings(filenames)

	if len(filenames) == 0 {
		return nil, apperrors.Newf(apperrors.InvalidInput, "상점 설정 디렉토리에 설정 파일(*.json)이 존재하지 않습니다: '%s'", dir)
	}

	shopConfigs := make([]model.ShopConfig, 0, len(filenames))
	for _, filename := range filenames {
		path := filepath.Join(dir, filename)

		shopConfig, err := loadShopConfigFile(path)
		if err != nil {
			return nil, err
		}

		if shopConfig.Disabled {
			logger.Infof("비활성화된 상점 설정을 제외합니다. (상점: %s, 파일: %s)", shopConfig.ID, filename)
			continue
		}

		shopConfigs = append(shopConfigs, *shopConfig)
	}

	if err := checkUniqueField(shopConfigs, "ID", "상점"); err != nil {
		return nil, err
	}

	logger.Infof("%d개 상점 설정 로드가 완료되었습니다.", len(shopConfigs))

	return shopConfigs, nil
}

// loadShopConfigFile 단일 상점 설정 파일을 읽고 검증합니다.
func loadShopConfigFile(path string) (*model.ShopConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, fmt.Sprintf("상점 설정 파일을 읽을 수 없습니다: '%s'", path))
	}

	var shopConfig model.ShopConfig
	if err := json.Unmarshal(data, &shopConfig); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ParsingFailed, fmt.Sprintf("상점 설정 파일 형식이 올바르지 않습니다: '%s'", path))
	}

	if err := validateShopConfig(&shopConfig); err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("상점 설정 파일의 유효성 검증에 실패했습니다: '%s'", path))
	}

	return &shopConfig, nil
}

// validateShopConfig 구조체 태그 기반 검증에 더해, 태그로 표현할 수 없는 정합성을 검사합니다.
func validateShopConfig(shopConfig *model.ShopConfig) error {
	if err := validateStruct(shopConfig, "상점"); err != nil {
		return err
	}

	if shopConfig.DirectHitPattern != "" {
		if _, err := regexp.Compile(shopConfig.DirectHitPattern); err != nil {
			return apperrors.Wrapf(err, apperrors.InvalidInput, "directHitPattern 정규식이 올바르지 않습니다: '%s'", shopConfig.DirectHitPattern)
		}
	}

	for _, s := range collectSelectors(shopConfig) {
		if err := validateSelector(s); err != nil {
			return err
		}
	}

	return nil
}

// collectSelectors 상점 설정에 정의된 모든 셀렉터를 평탄화하여 반환합니다.
func collectSelectors(shopConfig *model.ShopConfig) []*model.Selector {
	search := &shopConfig.Selectors.SearchPage
	product := &shopConfig.Selectors.ProductPage

	selectors := []*model.Selector{
		&search.Article, &search.ProductURL, &search.Title, &product.Price,
	}
	if search.Price != nil {
		selectors = append(selectors, search.Price)
	}
	if product.Title != nil {
		selectors = append(selectors, product.Title)
	}
	for i := range search.Available {
		selectors = append(selectors, &search.Available[i])
	}
	for i := range search.Unavailable {
		selectors = append(selectors, &search.Unavailable[i])
	}
	for i := range product.Available {
		selectors = append(selectors, &product.Available[i])
	}
	for i := range product.Unavailable {
		selectors = append(selectors, &product.Unavailable[i])
	}
	return selectors
}

func validateSelector(s *model.Selector) error {
	switch s.Type {
	case model.SelectorCSS, model.SelectorXPath, model.SelectorText:
	default:
		return apperrors.Newf(apperrors.InvalidInput, "지원하지 않는 셀렉터 타입입니다: '%s'", s.Type)
	}

	if len(s.Values) == 0 {
		return apperrors.New(apperrors.InvalidInput, "셀렉터의 value가 비어 있습니다")
	}

	switch s.Extract {
	case "", model.ExtractText, model.ExtractHref, model.ExtractInnerHTML:
	default:
		return apperrors.Newf(apperrors.InvalidInput, "지원하지 않는 추출 모드입니다: '%s'", s.Extract)
	}

	switch s.Format {
	case "", model.PriceFormatEuropean, model.PriceFormatUS:
	default:
		return apperrors.Newf(apperrors.InvalidInput, "지원하지 않는 가격 형식입니다: '%s'", s.Format)
	}

	return nil
}
