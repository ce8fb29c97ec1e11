package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape/fetcher"
)

func TestStaticEngine_Goto(t *testing.T) {
	t.Parallel()

	t.Run("페이지 로드 및 추출", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(sampleHTML))
		}))
		defer server.Close()

		e := NewStaticEngine(fetcher.NewHTTPFetcher())
		defer e.Close()

		require.NoError(t, e.Goto(context.Background(), server.URL))
		assert.Equal(t, server.URL, e.CurrentURL())

		got, ok := e.Extract(&model.Selector{Type: model.SelectorCSS, Values: model.StringList{"span.price"}})
		require.True(t, ok)
		assert.Equal(t, "79,99 zł", got)
	})

	t.Run("리다이렉트 추적: CurrentURL은 최종 URL", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/szukaj", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/produkt/151-booster-bundle", http.StatusFound)
		})
		mux.HandleFunc("/produkt/151-booster-bundle", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html><body><h1>151 Booster Bundle</h1></body></html>`))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		e := NewStaticEngine(fetcher.NewHTTPFetcher())
		defer e.Close()

		require.NoError(t, e.Goto(context.Background(), server.URL+"/szukaj"))
		assert.Equal(t, server.URL+"/produkt/151-booster-bundle", e.CurrentURL())
	})

	t.Run("404 응답은 에러", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		e := NewStaticEngine(fetcher.NewHTTPFetcher())
		defer e.Close()

		err := e.Goto(context.Background(), server.URL)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.NotFound))
	})

	t.Run("네비게이션 전에는 질의 결과가 비어 있다", func(t *testing.T) {
		t.Parallel()

		e := NewStaticEngine(fetcher.NewHTTPFetcher())
		defer e.Close()

		assert.Empty(t, e.CurrentURL())
		_, ok := e.Extract(&model.Selector{Type: model.SelectorCSS, Values: model.StringList{"h1"}})
		assert.False(t, ok)
		assert.Nil(t, e.ExtractAll(&model.Selector{Type: model.SelectorCSS, Values: model.StringList{"div"}}))
	})
}
