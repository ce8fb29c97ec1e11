package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/darkkaiser/cardwatch-server/internal/model"
)

func testPayload(price, maxPrice float64) model.NotificationPayload {
	return model.NotificationPayload{
		ProductID:   "surging-sparks-booster-box",
		ProductName: "Surging Sparks Booster Box",
		ShopID:      "sklep-testowy",
		ShopName:    "Sklep Testowy",
		Price:       price,
		MaxPrice:    maxPrice,
		ProductURL:  "https://sklep.example.pl/produkt/surging-sparks-booster-box",
	}
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	t.Run("가격은 폴란드 로케일로 렌더링", func(t *testing.T) {
		t.Parallel()

		text := RenderText(testPayload(649.99, 700))
		assert.Contains(t, text, "Surging Sparks Booster Box")
		assert.Contains(t, text, "Sklep Testowy")
		assert.Contains(t, text, "649,99 zł")
		assert.Contains(t, text, "https://sklep.example.pl/produkt/surging-sparks-booster-box")
	})

	t.Run("최대 가격보다 낮으면 두 가격을 함께 표시", func(t *testing.T) {
		t.Parallel()

		text := RenderText(testPayload(649.99, 700))
		assert.Contains(t, text, "700,00 zł")
		assert.Contains(t, text, "Twój limit")
	})

	t.Run("최대 가격과 같으면 현재 가격만 표시", func(t *testing.T) {
		t.Parallel()

		text := RenderText(testPayload(700, 700))
		assert.NotContains(t, text, "Twój limit")
	})
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	t.Run("상품명과 가격 강조, 링크 포함", func(t *testing.T) {
		t.Parallel()

		html := RenderHTML(testPayload(649.99, 700))
		assert.Contains(t, html, "<b>Surging Sparks Booster Box</b>")
		assert.Contains(t, html, "<b>649,99 zł</b>")
		assert.Contains(t, html, `<a href="https://sklep.example.pl/produkt/surging-sparks-booster-box">`)
	})

	t.Run("상품명의 HTML 특수문자 이스케이프", func(t *testing.T) {
		t.Parallel()

		payload := testPayload(649.99, 700)
		payload.ProductName = "Scarlet & Violet <151>"

		html := RenderHTML(payload)
		assert.Contains(t, html, "Scarlet &amp; Violet &lt;151&gt;")
	})
}
