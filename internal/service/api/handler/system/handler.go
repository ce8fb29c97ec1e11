// Package system 시스템 엔드포인트 핸들러를 제공합니다.
//
// 헬스체크, 버전 정보 등 인증이 필요 없는 시스템 수준의 API를 처리합니다.
package system

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/darkkaiser/cardwatch-server/internal/pkg/version"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

const componentHandler = "api.system.handler"

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"

	dependencyStorage = "storage"
)

// Pinger 외부 의존성의 응답 여부를 확인합니다.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyStatus 개별 외부 의존성의 상태입니다.
type DependencyStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse 헬스체크 응답입니다.
type HealthResponse struct {
	Status       string                      `json:"status"`
	Uptime       int64                       `json:"uptime"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

// VersionResponse 서버 버전 정보 응답입니다.
type VersionResponse struct {
	Version     string `json:"version"`
	BuildDate   string `json:"build_date"`
	BuildNumber string `json:"build_number"`
	GoVersion   string `json:"go_version"`
}

// Handler 시스템 엔드포인트 핸들러 (헬스체크, 버전 정보)
type Handler struct {
	storage Pinger

	buildInfo version.Info

	serverStartTime time.Time
}

// NewHandler Handler 인스턴스를 생성합니다.
func NewHandler(storage Pinger, buildInfo version.Info) *Handler {
	return &Handler{
		storage: storage,

		buildInfo: buildInfo,

		serverStartTime: time.Now(),
	}
}

// HealthCheckHandler 서버와 저장소 의존성의 상태를 반환합니다.
// 인증 없이 호출 가능하며, 모니터링 시스템에서 사용됩니다.
func (h *Handler) HealthCheckHandler(c echo.Context) error {
	applog.WithComponentAndFields(componentHandler, applog.Fields{
		"endpoint":  c.Path(),
		"remote_ip": c.RealIP(),
	}).Debug("헬스체크 요청")

	uptime := int64(time.Since(h.serverStartTime).Seconds())

	deps := make(map[string]DependencyStatus)

	if h.storage != nil {
		if err := h.storage.Ping(c.Request().Context()); err != nil {
			deps[dependencyStorage] = DependencyStatus{
				Status:  healthStatusUnhealthy,
				Message: err.Error(),
			}
		} else {
			deps[dependencyStorage] = DependencyStatus{
				Status: healthStatusHealthy,
			}
		}
	} else {
		deps[dependencyStorage] = DependencyStatus{
			Status:  healthStatusUnhealthy,
			Message: "저장소가 초기화되지 않았습니다",
		}
	}

	// 하나라도 unhealthy면 전체 상태를 unhealthy로 설정
	serverStatus := healthStatusHealthy
	for _, dep := range deps {
		if dep.Status != healthStatusHealthy {
			serverStatus = healthStatusUnhealthy
			break
		}
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:       serverStatus,
		Uptime:       uptime,
		Dependencies: deps,
	})
}

// VersionHandler 서버의 버전과 빌드 정보를 반환합니다.
func (h *Handler) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, VersionResponse{
		Version:     h.buildInfo.Version,
		BuildDate:   h.buildInfo.BuildDate,
		BuildNumber: h.buildInfo.BuildNumber,
		GoVersion:   runtime.Version(),
	})
}
