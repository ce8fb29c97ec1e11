// Package version 애플리케이션의 빌드 및 버저닝 정보를 관리합니다.
//
// 빌드 시점에 링커 플래그(-ldflags)로 주입된 메타데이터와
// 실행 시점의 환경 정보(Go 버전, OS, 아키텍처)를 통합하여 제공합니다.
package version

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// globalBuildInfo 전역 빌드 정보 (atomic.Value를 사용하여 Thread-Safe 보장)
var globalBuildInfo atomic.Value

// Info 빌드 및 실행 환경 정보를 담는 구조체입니다.
type Info struct {
	Version     string // 애플리케이션 버전 (예: v1.2.0-12-gf25b8bf)
	BuildDate   string // 빌드 수행 시간
	BuildNumber string // CI/CD 파이프라인 빌드 번호
	GoVersion   string // 컴파일에 사용된 Go 버전
	OS          string // 실행 운영체제
	Arch        string // 실행 아키텍처
}

// String 빌드 정보를 사람이 읽기 좋은 한 줄 문자열로 반환합니다.
func (i Info) String() string {
	return fmt.Sprintf("%s (build:%s, %s, %s/%s)", i.Version, i.BuildNumber, i.GoVersion, i.OS, i.Arch)
}

// Set 전역 빌드 정보를 등록합니다. main 함수 초기에 한 번 호출합니다.
func Set(info Info) {
	if info.GoVersion == "" {
		info.GoVersion = runtime.Version()
	}
	if info.OS == "" {
		info.OS = runtime.GOOS
	}
	if info.Arch == "" {
		info.Arch = runtime.GOARCH
	}

	globalBuildInfo.Store(info)
}

// Get 등록된 전역 빌드 정보를 반환합니다. 등록 전에는 Zero Value Info를 반환합니다.
func Get() Info {
	if v := globalBuildInfo.Load(); v != nil {
		return v.(Info)
	}
	return Info{}
}
