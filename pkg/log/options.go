package log

import (
	"fmt"
	"os"
)

// Options 로깅 시스템 초기화 설정입니다.
type Options struct {
	Name  string // 로그 파일명 생성에 사용되는 애플리케이션 식별자
	Dir   string // 로그 파일 저장 디렉토리 (빈 문자열: "logs")
	Level Level  // 로그 레벨

	MaxAge     int // 오래된 로그 삭제 기준일 (일 단위, 0: 삭제 안 함)
	MaxSizeMB  int // 로그 파일 하나당 최대 크기 (MB, 0: 기본값 사용)
	MaxBackups int // 로테이션 된 백업 파일의 최대 보관 개수 (0: 기본값 사용)

	// EnableConsoleLog 표준 출력(Stdout)에도 로그를 출력할지 여부입니다. (개발 환경 권장)
	EnableConsoleLog bool

	// ReportCaller 로그를 호출한 소스 코드의 위치(함수명:라인번호)를 함께 기록할지 여부입니다.
	ReportCaller bool

	// CallerPathPrefix 호출자 경로 표시에서 잘라낼 접두어입니다.
	// 예: "github.com/darkkaiser/cardwatch-server"를 지정하면 하위 경로만 출력됩니다.
	CallerPathPrefix string
}

// Validate Options 필드 값의 유효성을 검증합니다.
func (opts *Options) Validate() error {
	if opts.Name == "" {
		return fmt.Errorf("애플리케이션 식별자(Name)가 설정되지 않았습니다")
	}

	if opts.Dir != "" {
		if info, err := os.Stat(opts.Dir); err == nil && !info.IsDir() {
			return fmt.Errorf("로그 디렉토리 경로(%s)가 이미 파일로 존재합니다", opts.Dir)
		}
	}

	if opts.MaxAge < 0 || opts.MaxSizeMB < 0 || opts.MaxBackups < 0 {
		return fmt.Errorf("로그 보관 설정(MaxAge/MaxSizeMB/MaxBackups)은 0 이상이어야 합니다")
	}

	return nil
}

// NewProductionOptions 운영 환경에 맞는 로그 설정을 반환합니다.
func NewProductionOptions(appName string) Options {
	return Options{
		Name:  appName,
		Level: InfoLevel,

		MaxAge:     30,
		MaxSizeMB:  100,
		MaxBackups: 20,

		EnableConsoleLog: false,
		ReportCaller:     true,
	}
}

// NewDevelopmentOptions 개발 환경에 맞는 로그 설정을 반환합니다.
func NewDevelopmentOptions(appName string) Options {
	return Options{
		Name:  appName,
		Level: TraceLevel,

		MaxAge:     1,
		MaxSizeMB:  50,
		MaxBackups: 5,

		EnableConsoleLog: true,
		ReportCaller:     true,
	}
}
