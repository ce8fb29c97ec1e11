package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/cardwatch-server/internal/config"
	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	"github.com/darkkaiser/cardwatch-server/internal/pkg/version"
)

const testAppKey = "test-app-key"

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

type fakeOfferReader struct {
	offer model.ProductResult
	err   error
}

func (f *fakeOfferReader) BestOfferForProduct(_ context.Context, _ string, _ time.Time) (model.ProductResult, error) {
	return f.offer, f.err
}

type fakeTokenMinter struct{}

func (f *fakeTokenMinter) Mint(_ context.Context, userID string, channel model.Channel) (model.LinkToken, error) {
	return model.LinkToken{Token: "deadbeef", UserID: userID, Channel: channel, CreatedAt: time.Now()}, nil
}

func floatPtr(v float64) *float64 { return &v }

func testAppConfig() *config.AppConfig {
	return &config.AppConfig{
		API: config.APIConfig{
			ListenPort: 8080,
			AppKey:     testAppKey,
		},
	}
}

// newTestServer 라우트와 미들웨어가 모두 구성된 Echo 인스턴스를 생성합니다.
func newTestServer(storagePing error, offers *fakeOfferReader) http.Handler {
	s := NewService(testAppConfig(), &fakePinger{err: storagePing}, offers, &fakeTokenMinter{}, version.Info{Version: "v1.0.0-test"})
	return s.setupServer()
}

func TestService_SystemRoutes(t *testing.T) {
	t.Parallel()

	t.Run("healthz는 인증 없이 저장소 상태를 보고", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(nil, &fakeOfferReader{})

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Status       string                            `json:"status"`
			Dependencies map[string]map[string]interface{} `json:"dependencies"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Contains(t, resp.Dependencies, "storage")
	})

	t.Run("저장소 장애 시 unhealthy 보고", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(apperrors.New(apperrors.Unavailable, "MongoDB 서버가 응답하지 않습니다"), &fakeOfferReader{})

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
	})

	t.Run("version은 빌드 정보를 반환", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(nil, &fakeOfferReader{})

		req := httptest.NewRequest(http.MethodGet, "/version", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "v1.0.0-test")
	})
}

func TestService_V1Routes(t *testing.T) {
	t.Parallel()

	t.Run("인증 없는 v1 요청은 401", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(nil, &fakeOfferReader{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/surging-sparks-booster-box/best-offer", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "result_code")
	})

	t.Run("인증된 최저가 제안 조회", func(t *testing.T) {
		t.Parallel()

		offers := &fakeOfferReader{
			offer: model.ProductResult{
				ProductID:   "surging-sparks-booster-box",
				ShopID:      "sklep-testowy",
				Price:       floatPtr(649.99),
				IsAvailable: true,
			},
		}
		srv := newTestServer(nil, offers)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/surging-sparks-booster-box/best-offer", nil)
		req.Header.Set("X-App-Key", testAppKey)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "sklep-testowy")
		assert.Contains(t, rec.Body.String(), "649.99")
	})

	t.Run("인증된 연결 토큰 발급", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(nil, &fakeOfferReader{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/link-tokens",
			strings.NewReader(`{"user_id": "user-1", "channel": "telegram"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-App-Key", testAppKey)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), "deadbeef")
	})

	t.Run("미등록 경로는 표준 에러 형식의 404", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(nil, &fakeOfferReader{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "result_code")
	})
}
