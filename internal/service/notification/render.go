// Package notification 채널별 알림 어댑터(텔레그램, 디스코드)와 메시지 렌더링을 담당합니다.
//
// 어댑터는 호출 간 상태를 가지지 않고 동시 호출에 안전하지만,
// 같은 채팅으로 향하는 한 사용자의 메시지는 키 단위 잠금으로 직렬화됩니다.
package notification

import (
	"fmt"
	"html"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/darkkaiser/cardwatch-server/internal/model"
)

// printer 폴란드 로케일 숫자 형식(1 299,95)의 메시지 프린터입니다.
// 사용자 알림 메시지는 폴란드어로 렌더링됩니다.
var printer = message.NewPrinter(language.Polish)

// formatPrice 가격을 폴란드 로케일의 złoty 표기로 렌더링합니다.
func formatPrice(price float64) string {
	return printer.Sprintf("%.2f zł", price)
}

// RenderText 알림 내용을 일반 텍스트로 렌더링합니다. (디스코드 등 마크업 없는 채널용)
//
// 현재 가격이 사용자의 최대 가격보다 낮으면 두 가격을 함께 표시합니다.
func RenderText(payload model.NotificationPayload) string {
	text := fmt.Sprintf("🔔 %s jest dostępny!\nSklep: %s\nCena: %s", payload.ProductName, payload.ShopName, formatPrice(payload.Price))
	if payload.Price < payload.MaxPrice {
		text += fmt.Sprintf(" (Twój limit: %s)", formatPrice(payload.MaxPrice))
	}
	return text + "\n" + payload.ProductURL
}

// RenderHTML 알림 내용을 텔레그램 HTML 메시지로 렌더링합니다.
func RenderHTML(payload model.NotificationPayload) string {
	text := fmt.Sprintf("🔔 <b>%s</b> jest dostępny!\nSklep: %s\nCena: <b>%s</b>",
		html.EscapeString(payload.ProductName), html.EscapeString(payload.ShopName), formatPrice(payload.Price))
	if payload.Price < payload.MaxPrice {
		text += fmt.Sprintf(" (Twój limit: %s)", formatPrice(payload.MaxPrice))
	}
	return text + fmt.Sprintf("\n<a href=\"%s\">Przejdź do sklepu</a>", payload.ProductURL)
}
