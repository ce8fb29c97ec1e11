package model

import (
	"fmt"
	"time"
)

// Channel 알림 전송 채널의 종류입니다.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelDiscord  Channel = "discord"
)

// WatchEntry 사용자의 상품 감시 항목입니다. 유일성: (UserID, ProductID).
type WatchEntry struct {
	UserID    string  `bson:"user_id"`
	ProductID string  `bson:"product_id"`
	MaxPrice  float64 `bson:"max_price"`
	IsActive  bool    `bson:"is_active"`
}

// NotificationTarget 사용자가 연결한 알림 채널 대상입니다.
//
// ChannelTarget은 채널별 전송 대상 식별자(텔레그램 채팅 ID, 디스코드 채널 ID)입니다.
// 연결된 채널이 하나 이상인 사용자만 알림을 수신합니다.
type NotificationTarget struct {
	UserID        string  `bson:"user_id"`
	Channel       Channel `bson:"channel"`
	ChannelTarget string  `bson:"channel_target"`
}

// StateKey (사용자, 상품, 상점) 조합의 알림 상태 복합 키를 생성합니다.
func StateKey(userID, productID, shopID string) string {
	return fmt.Sprintf("%s:%s:%s", userID, productID, shopID)
}

// NotificationState (사용자, 상품, 상점) 조합별 알림 이력 상태입니다.
//
// 중복 알림 방지(Dedup), 재입고 감지, 가격 하락 감지의 판단 근거가 되며,
// 사이클 시작 시 일괄 로드되어 메모리에서 갱신된 후 사이클 종료 시 일괄 저장됩니다.
type NotificationState struct {
	Key string `bson:"_id"` // StateKey(UserID, ProductID, ShopID)

	UserID    string `bson:"user_id"`
	ProductID string `bson:"product_id"`
	ShopID    string `bson:"shop_id"`

	LastNotified *time.Time `bson:"last_notified"`
	LastPrice    *float64   `bson:"last_price"`
	WasAvailable bool       `bson:"was_available"`
}

// DeliveryStatus 개별 채널 전송의 상태입니다.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySending DeliveryStatus = "sending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery 알림 감사 레코드 내의 채널별 전송 기록입니다.
type Delivery struct {
	Channel       Channel        `bson:"channel"`
	ChannelTarget string         `bson:"channel_target"`
	Status        DeliveryStatus `bson:"status"`
	Attempts      int            `bson:"attempts"`
	Error         string         `bson:"error,omitempty"`
	SentAt        *time.Time     `bson:"sent_at,omitempty"`
}

// Notification 알림 발송 감사(Audit) 레코드입니다. 생성 후 30일 뒤 만료됩니다.
type Notification struct {
	UserID     string              `bson:"user_id"`
	Status     DeliveryStatus      `bson:"status"`
	Payload    NotificationPayload `bson:"payload"`
	Deliveries []Delivery          `bson:"deliveries"`
	CreatedAt  time.Time           `bson:"created_at"`
}

// NotificationPayload 채널 어댑터가 렌더링하는 알림 내용입니다.
type NotificationPayload struct {
	ProductID   string  `bson:"product_id"`
	ProductName string  `bson:"product_name"`
	ShopID      string  `bson:"shop_id"`
	ShopName    string  `bson:"shop_name"`
	Price       float64 `bson:"price"`
	MaxPrice    float64 `bson:"max_price"`
	ProductURL  string  `bson:"product_url"`
}

// LinkToken 채널 연결을 위한 일회용 토큰입니다. 발급 후 15분 뒤 만료됩니다.
type LinkToken struct {
	Token     string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Channel   Channel   `bson:"channel"`
	CreatedAt time.Time `bson:"created_at"`
}
