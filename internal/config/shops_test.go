package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

const validShopJSON = `{
	"id": "karciarnia",
	"name": "Karciarnia",
	"baseUrl": "https://karciarnia.pl",
	"searchUrl": "https://karciarnia.pl/szukaj?q={query}",
	"engine": "static-html",
	"fetchingTier": "fast",
	"selectors": {
		"searchPage": {
			"article": {"type": "css", "value": "div.product-item"},
			"productUrl": {"type": "css", "value": "a.product-link", "extract": "href"},
			"title": {"type": "css", "value": "h3.title"}
		},
		"productPage": {
			"price": {"type": "css", "value": "div.price", "format": "european"},
			"available": {"type": "css", "value": "button.add-to-cart"}
		}
	}
}`

func writeShopFile(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
}

func TestLoadShopConfigs(t *testing.T) {
	t.Parallel()

	t.Run("정상적인 상점 설정 로드", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeShopFile(t, dir, "karciarnia.json", validShopJSON)

		shops, err := LoadShopConfigs(dir)
		require.NoError(t, err)
		require.Len(t, shops, 1)
		assert.Equal(t, "karciarnia", shops[0].ID)
		assert.Equal(t, model.EngineStaticHTML, shops[0].Engine)
	})

	t.Run("비활성화된 상점은 제외된다", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeShopFile(t, dir, "karciarnia.json", validShopJSON)

		disabled := `{
			"id": "zamkniety-sklep",
			"name": "Zamknięty Sklep",
			"baseUrl": "https://zamkniety.pl",
			"searchUrl": "https://zamkniety.pl/szukaj?q={query}",
			"engine": "static-html",
			"fetchingTier": "slow",
			"disabled": true,
			"selectors": {
				"searchPage": {
					"article": {"type": "css", "value": "div.item"},
					"productUrl": {"type": "css", "value": "a", "extract": "href"},
					"title": {"type": "css", "value": "h3"}
				},
				"productPage": {
					"price": {"type": "css", "value": ".price", "format": "european"}
				}
			}
		}`
		writeShopFile(t, dir, "zamkniety.json", disabled)

		shops, err := LoadShopConfigs(dir)
		require.NoError(t, err)
		require.Len(t, shops, 1)
		assert.Equal(t, "karciarnia", shops[0].ID)
	})

	t.Run("형식이 잘못된 파일이 있으면 전체 로드가 실패한다", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeShopFile(t, dir, "karciarnia.json", validShopJSON)
		writeShopFile(t, dir, "broken.json", `{ not valid json`)

		_, err := LoadShopConfigs(dir)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ParsingFailed))
	})

	t.Run("필수 셀렉터 누락 시 실패한다", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		missing := `{
			"id": "bez-selektorow",
			"name": "Bez Selektorów",
			"baseUrl": "https://sklep.pl",
			"searchUrl": "https://sklep.pl/szukaj?q={query}",
			"engine": "static-html",
			"fetchingTier": "fast",
			"selectors": {
				"searchPage": {
					"article": {"type": "css", "value": "div.item"},
					"productUrl": {"type": "css", "value": "a", "extract": "href"},
					"title": {"type": "css", "value": "h3"}
				},
				"productPage": {}
			}
		}`
		writeShopFile(t, dir, "shop.json", missing)

		_, err := LoadShopConfigs(dir)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
	})

	t.Run("directHitPattern 정규식 오류 시 실패한다", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		broken := `{
			"id": "karciarnia",
			"name": "Karciarnia",
			"baseUrl": "https://karciarnia.pl",
			"searchUrl": "https://karciarnia.pl/szukaj?q={query}",
			"engine": "static-html",
			"fetchingTier": "fast",
			"directHitPattern": "[invalid(",
			"selectors": {
				"searchPage": {
					"article": {"type": "css", "value": "div.item"},
					"productUrl": {"type": "css", "value": "a", "extract": "href"},
					"title": {"type": "css", "value": "h3"}
				},
				"productPage": {
					"price": {"type": "css", "value": ".price", "format": "european"}
				}
			}
		}`
		writeShopFile(t, dir, "shop.json", broken)

		_, err := LoadShopConfigs(dir)
		require.Error(t, err)
	})

	t.Run("상점 ID 중복 시 실패한다", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeShopFile(t, dir, "a.json", validShopJSON)
		writeShopFile(t, dir, "b.json", validShopJSON)

		_, err := LoadShopConfigs(dir)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
	})

	t.Run("빈 디렉토리", func(t *testing.T) {
		t.Parallel()

		_, err := LoadShopConfigs(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("존재하지 않는 디렉토리", func(t *testing.T) {
		t.Parallel()

		_, err := LoadShopConfigs(filepath.Join(t.TempDir(), "no-such-dir"))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.System))
	})
}
