package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

const validConfigJSON = `{
	"mongo": {
		"uri": "mongodb://localhost:27017",
		"database": "cardwatch"
	},
	"notifiers": {
		"telegram": {"bot_token": "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"}
	},
	"watch": {
		"shop_config_dir": "testdata/shops"
	},
	"api": {
		"listen_port": 8080,
		"app_key": "test-app-key"
	}
}`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWithFile(t *testing.T) {
	t.Run("정상적인 설정 파일 로드", func(t *testing.T) {
		cfg, err := LoadWithFile(writeConfigFile(t, validConfigJSON))
		require.NoError(t, err)

		assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
		assert.True(t, cfg.Notifiers.Telegram.Enabled())
		assert.False(t, cfg.Notifiers.Discord.Enabled())
		assert.Equal(t, "test-app-key", cfg.API.AppKey)
	})

	t.Run("기본값 적용", func(t *testing.T) {
		cfg, err := LoadWithFile(writeConfigFile(t, validConfigJSON))
		require.NoError(t, err)

		assert.Equal(t, 5*time.Minute, cfg.Watch.CyclePeriodDuration())
		assert.Equal(t, 20*time.Minute, cfg.Watch.CycleDeadlineDuration())
		assert.Equal(t, DefaultProductConcurrency, cfg.Watch.ProductConcurrency)
		assert.Equal(t, DefaultQueueHighWater, cfg.Watch.QueueHighWater)
		assert.Equal(t, DefaultFlushBatchSize, cfg.Watch.FlushBatchSize)
		assert.Equal(t, 1100*time.Millisecond, cfg.Watch.FlushBatchDelayDuration())
	})

	t.Run("환경 변수가 파일 설정보다 우선한다", func(t *testing.T) {
		t.Setenv("CARDWATCH_WATCH__CYCLE_PERIOD", "10m")
		t.Setenv("CARDWATCH_API__APP_KEY", "env-app-key")

		cfg, err := LoadWithFile(writeConfigFile(t, validConfigJSON))
		require.NoError(t, err)

		assert.Equal(t, 10*time.Minute, cfg.Watch.CyclePeriodDuration())
		assert.Equal(t, "env-app-key", cfg.API.AppKey)
	})

	t.Run("존재하지 않는 설정 파일", func(t *testing.T) {
		_, err := LoadWithFile(filepath.Join(t.TempDir(), "no-such-file.json"))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.System))
	})

	t.Run("알 수 없는 최상위 키가 있으면 실패한다", func(t *testing.T) {
		content := `{
			"mongo": {"uri": "mongodb://localhost:27017", "database": "cardwatch"},
			"notifiers": {"telegram": {"bot_token": "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"}},
			"watch": {"shop_config_dir": "testdata/shops"},
			"api": {"listen_port": 8080, "app_key": "k"},
			"unknown_section": {"x": 1}
		}`
		_, err := LoadWithFile(writeConfigFile(t, content))
		assert.Error(t, err)
	})
}

func TestLoadWithFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"mongo.uri 누락",
			`{
				"mongo": {"database": "cardwatch"},
				"notifiers": {"telegram": {"bot_token": "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"}},
				"watch": {"shop_config_dir": "testdata/shops"},
				"api": {"listen_port": 8080, "app_key": "k"}
			}`,
		},
		{
			"mongo.uri 형식 오류",
			`{
				"mongo": {"uri": "http://localhost:27017", "database": "cardwatch"},
				"notifiers": {"telegram": {"bot_token": "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"}},
				"watch": {"shop_config_dir": "testdata/shops"},
				"api": {"listen_port": 8080, "app_key": "k"}
			}`,
		},
		{
			"알림 채널 전체 누락",
			`{
				"mongo": {"uri": "mongodb://localhost:27017", "database": "cardwatch"},
				"notifiers": {},
				"watch": {"shop_config_dir": "testdata/shops"},
				"api": {"listen_port": 8080, "app_key": "k"}
			}`,
		},
		{
			"텔레그램 봇 토큰 형식 오류",
			`{
				"mongo": {"uri": "mongodb://localhost:27017", "database": "cardwatch"},
				"notifiers": {"telegram": {"bot_token": "invalid-token"}},
				"watch": {"shop_config_dir": "testdata/shops"},
				"api": {"listen_port": 8080, "app_key": "k"}
			}`,
		},
		{
			"프록시 활성화 시 주소 누락",
			`{
				"mongo": {"uri": "mongodb://localhost:27017", "database": "cardwatch"},
				"notifiers": {"telegram": {"bot_token": "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"}},
				"proxy": {"enabled": true},
				"watch": {"shop_config_dir": "testdata/shops"},
				"api": {"listen_port": 8080, "app_key": "k"}
			}`,
		},
		{
			"사이클 주기 형식 오류",
			`{
				"mongo": {"uri": "mongodb://localhost:27017", "database": "cardwatch"},
				"notifiers": {"telegram": {"bot_token": "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"}},
				"watch": {"shop_config_dir": "testdata/shops", "cycle_period": "다섯 분"},
				"api": {"listen_port": 8080, "app_key": "k"}
			}`,
		},
		{
			"app_key 누락",
			`{
				"mongo": {"uri": "mongodb://localhost:27017", "database": "cardwatch"},
				"notifiers": {"telegram": {"bot_token": "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"}},
				"watch": {"shop_config_dir": "testdata/shops"},
				"api": {"listen_port": 8080}
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithFile(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
		})
	}
}
