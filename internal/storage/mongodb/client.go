// Package mongodb 감시 카탈로그, 수집 결과, 알림 상태의 영속화를 담당하는 MongoDB 저장소 계층입니다.
//
// 저장소 실패는 진행 중인 사이클을 중단시키는 치명적 에러로 취급되므로,
// 모든 저장소 메서드는 에러를 삼키지 않고 호출자에게 그대로 전파합니다.
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/darkkaiser/cardwatch-server/internal/config"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// 컬렉션 이름
const (
	collProducts            = "products"
	collProductTypes        = "product_types"
	collProductSets         = "product_sets"
	collProductResults      = "product_results"
	collWatchEntries        = "watch_entries"
	collNotificationTargets = "notification_targets"
	collNotificationStates  = "notification_states"
	collNotifications       = "notifications"
	collLinkTokens          = "link_tokens"
)

// connectTimeout 초기 연결 및 Ping의 제한 시간입니다.
const connectTimeout = 10 * time.Second

// Client MongoDB 연결과 도메인별 저장소들을 소유합니다.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient MongoDB에 연결하고 필요한 인덱스를 생성합니다.
// 연결 실패와 인덱스 생성 실패는 모두 기동 실패로 이어지는 System 에러입니다.
func NewClient(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "MongoDB 연결에 실패하였습니다")
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.Wrap(err, apperrors.System, "MongoDB 서버가 응답하지 않습니다")
	}

	c := &Client{
		client: client,
		db:     client.Database(cfg.Database),
	}

	if err := c.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	applog.WithComponent("mongodb").Info("MongoDB 연결이 초기화되었습니다.")
	return c, nil
}

// Ping MongoDB 서버의 응답 여부를 확인합니다. 헬스체크에서 사용됩니다.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := c.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, "MongoDB 서버가 응답하지 않습니다")
	}
	return nil
}

// Close MongoDB 연결을 해제합니다.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.System, "MongoDB 연결 해제에 실패하였습니다")
	}
	return nil
}

// Catalog 상품 카탈로그 저장소를 반환합니다.
func (c *Client) Catalog() *CatalogStore {
	return &CatalogStore{db: c.db}
}

// Results 수집 결과 저장소를 반환합니다.
func (c *Client) Results() *ResultStore {
	return &ResultStore{col: c.db.Collection(collProductResults)}
}

// Watches 감시 항목/알림 대상 저장소를 반환합니다.
func (c *Client) Watches() *WatchStore {
	return &WatchStore{db: c.db}
}

// States 알림 상태 저장소를 반환합니다.
func (c *Client) States() *StateStore {
	return &StateStore{col: c.db.Collection(collNotificationStates)}
}

// Notifications 알림 발송 감사 저장소를 반환합니다.
func (c *Client) Notifications() *NotificationStore {
	return &NotificationStore{col: c.db.Collection(collNotifications)}
}

// LinkTokens 채널 연결 토큰 저장소를 반환합니다.
func (c *Client) LinkTokens() *LinkTokenStore {
	return &LinkTokenStore{col: c.db.Collection(collLinkTokens)}
}
