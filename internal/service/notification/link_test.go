package notification

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

type fakeTokenConsumer struct {
	token model.LinkToken
	err   error
}

func (f *fakeTokenConsumer) Consume(_ context.Context, _ string) (model.LinkToken, error) {
	return f.token, f.err
}

type fakeTargetBinder struct {
	bound []model.NotificationTarget
}

func (f *fakeTargetBinder) BindTarget(_ context.Context, target model.NotificationTarget) error {
	f.bound = append(f.bound, target)
	return nil
}

func TestLinker_Link(t *testing.T) {
	t.Parallel()

	t.Run("유효한 토큰은 채널 대상을 등록", func(t *testing.T) {
		t.Parallel()

		binder := &fakeTargetBinder{}
		l := &linker{
			tokens: &fakeTokenConsumer{token: model.LinkToken{Token: "abc", UserID: "user-1", Channel: model.ChannelTelegram}},
			binder: binder,
		}

		consumed, err := l.link(context.Background(), "abc", model.ChannelTelegram, "111")
		require.NoError(t, err)
		assert.Equal(t, "user-1", consumed.UserID)

		require.Len(t, binder.bound, 1)
		assert.Equal(t, model.NotificationTarget{UserID: "user-1", Channel: model.ChannelTelegram, ChannelTarget: "111"}, binder.bound[0])
	})

	t.Run("다른 채널용 토큰은 거부", func(t *testing.T) {
		t.Parallel()

		binder := &fakeTargetBinder{}
		l := &linker{
			tokens: &fakeTokenConsumer{token: model.LinkToken{Token: "abc", UserID: "user-1", Channel: model.ChannelDiscord}},
			binder: binder,
		}

		_, err := l.link(context.Background(), "abc", model.ChannelTelegram, "111")
		assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
		assert.Empty(t, binder.bound)
	})

	t.Run("토큰 소비 실패는 그대로 전파", func(t *testing.T) {
		t.Parallel()

		binder := &fakeTargetBinder{}
		l := &linker{
			tokens: &fakeTokenConsumer{err: apperrors.New(apperrors.NotFound, "유효하지 않거나 이미 사용된 연결 토큰입니다")},
			binder: binder,
		}

		_, err := l.link(context.Background(), "abc", model.ChannelTelegram, "111")
		assert.True(t, apperrors.Is(err, apperrors.NotFound))
		assert.Empty(t, binder.bound)
	})
}

func TestParseStartCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		wantToken string
		wantOK    bool
	}{
		{"정상 형식", "/start d41d8cd98f00b204e9800998ecf8427e", "d41d8cd98f00b204e9800998ecf8427e", true},
		{"앞뒤 공백 허용", "  /start abc  ", "abc", true},
		{"토큰 없는 /start", "/start", "", false},
		{"일반 메시지", "cześć", "", false},
		{"초과 인자", "/start abc def", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, ok := parseStartCommand(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	t.Parallel()

	t.Run("429 응답에서 retry_after 추출", func(t *testing.T) {
		t.Parallel()

		err := &discordgo.RESTError{
			Response:     &http.Response{StatusCode: http.StatusTooManyRequests},
			ResponseBody: []byte(`{"message": "You are being rate limited.", "retry_after": 1.5, "global": false}`),
		}

		retryAfter, ok := rateLimitRetryAfter(err)
		require.True(t, ok)
		assert.Equal(t, 1500*time.Millisecond, retryAfter)
	})

	t.Run("429가 아닌 에러는 재시도하지 않음", func(t *testing.T) {
		t.Parallel()

		err := &discordgo.RESTError{
			Response:     &http.Response{StatusCode: http.StatusForbidden},
			ResponseBody: []byte(`{"message": "Missing Access"}`),
		}

		_, ok := rateLimitRetryAfter(err)
		assert.False(t, ok)
	})

	t.Run("일반 에러는 재시도하지 않음", func(t *testing.T) {
		t.Parallel()

		_, ok := rateLimitRetryAfter(assert.AnError)
		assert.False(t, ok)
	})
}
