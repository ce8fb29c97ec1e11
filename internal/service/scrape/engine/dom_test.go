package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/cardwatch-server/internal/model"
)

const sampleHTML = `<html><body>
	<div class="product-item">
		<h3 class="title">  Pokémon TCG:   151 Booster Bundle  </h3>
		<a class="product-link" href="/produkt/151-booster-bundle">Zobacz</a>
		<span class="price">79,99 zł</span>
		<p class="stock">Dostępny</p>
	</div>
	<div class="product-item">
		<h3 class="title">Paldean Fates Booster Bundle</h3>
		<a class="product-link" href="/produkt/paldean-fates-booster-bundle">Zobacz</a>
		<span class="price"></span>
		<p class="stock">Niedostępny</p>
	</div>
	<div class="empty-price"><span class="price"></span></div>
</body></html>`

func parseTestPage(t *testing.T, htmlStr string) *page {
	t.Helper()
	p, err := parsePage(strings.NewReader(htmlStr), "text/html; charset=utf-8", "https://sklep.example/szukaj")
	require.NoError(t, err)
	return p
}

func TestExtract(t *testing.T) {
	t.Parallel()

	p := parseTestPage(t, sampleHTML)

	t.Run("CSS 텍스트 추출은 공백을 정규화한다", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"h3.title"}}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.Equal(t, "Pokémon TCG: 151 Booster Bundle", got)
	})

	t.Run("href 추출", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"a.product-link"}, Extract: model.ExtractHref}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.Equal(t, "/produkt/151-booster-bundle", got)
	})

	t.Run("innerHTML 추출", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"div.empty-price"}, Extract: model.ExtractInnerHTML}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.Contains(t, got, `<span class="price">`)
	})

	t.Run("폴백 목록: 앞선 질의 실패 시 다음 질의 시도", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"h1.missing", "h3.title"}}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.Contains(t, got, "151 Booster Bundle")
	})

	t.Run("빈 텍스트는 실패로 간주하고 폴백을 계속한다", func(t *testing.T) {
		t.Parallel()

		// 첫 번째 product-item의 price는 값이 있으므로 그쪽이 선택된다.
		sel := &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"div.empty-price span.price", "span.price"}}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.Equal(t, "79,99 zł", got)
	})

	t.Run("목록 소진 시 실패", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"h1.missing", "h2.missing"}}
		_, ok := extract(p.root, sel)
		assert.False(t, ok)
	})

	t.Run("XPath 추출", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorXPath, Values: model.StringList{`//span[@class="price"]`}}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.Equal(t, "79,99 zł", got)
	})

	t.Run("잘못된 XPath 표현식은 조용히 무시된다", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorXPath, Values: model.StringList{`//[invalid`, `//h3`}}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.NotEmpty(t, got)
	})

	t.Run("text 타입: 대소문자와 악센트를 무시한 포함 검사", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorText, Values: model.StringList{"niedostepny"}}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.Equal(t, "niedostepny", got)
	})

	t.Run("text 타입: 존재하지 않는 텍스트", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorText, Values: model.StringList{"wyprzedane"}}
		_, ok := extract(p.root, sel)
		assert.False(t, ok)
	})
}

func TestExtract_MatchText(t *testing.T) {
	t.Parallel()

	p := parseTestPage(t, sampleHTML)

	t.Run("일치하면 성공", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"div.product-item:first-of-type p.stock"}, MatchText: "dostępny"}
		got, ok := extract(p.root, sel)
		require.True(t, ok)
		assert.Equal(t, "Dostępny", got)
	})

	t.Run("불일치는 null로 간주", func(t *testing.T) {
		t.Parallel()

		sel := &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"div.product-item:first-of-type p.stock"}, MatchText: "Wyprzedane"}
		_, ok := extract(p.root, sel)
		assert.False(t, ok)
	})
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	p := parseTestPage(t, sampleHTML)

	articles := extractAll(p.root, &model.Selector{Type: model.SelectorCSS, Values: model.StringList{"div.product-item"}})
	require.Len(t, articles, 2)

	// 요소 기준 상대 질의
	title, ok := articles[1].Extract(&model.Selector{Type: model.SelectorCSS, Values: model.StringList{"h3.title"}})
	require.True(t, ok)
	assert.Equal(t, "Paldean Fates Booster Bundle", title)

	// 두 번째 상품의 price는 비어 있으므로 추출 실패
	_, ok = articles[1].Extract(&model.Selector{Type: model.SelectorCSS, Values: model.StringList{"span.price"}})
	assert.False(t, ok)
}

func TestExists(t *testing.T) {
	t.Parallel()

	p := parseTestPage(t, sampleHTML)

	t.Run("요소 존재 자체를 신호로 간주", func(t *testing.T) {
		t.Parallel()

		sels := model.SelectorList{{Type: model.SelectorCSS, Values: model.StringList{"div.empty-price span.price"}}}
		assert.True(t, exists(p.root, sels))
	})

	t.Run("matchText가 있으면 텍스트 일치까지 요구", func(t *testing.T) {
		t.Parallel()

		sels := model.SelectorList{{Type: model.SelectorCSS, Values: model.StringList{"p.stock"}, MatchText: "Wyprzedane"}}
		assert.False(t, exists(p.root, sels))
	})

	t.Run("목록 중 하나만 일치해도 참", func(t *testing.T) {
		t.Parallel()

		sels := model.SelectorList{
			{Type: model.SelectorCSS, Values: model.StringList{"button.missing"}},
			{Type: model.SelectorText, Values: model.StringList{"Dostępny"}},
		}
		assert.True(t, exists(p.root, sels))
	})
}
