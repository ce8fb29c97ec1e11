package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	fileExt = "log"

	// 기본 로그 로테이션 정책
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 20
)

var (
	// Setup()의 중복 호출을 방지하기 위한 동기화 객체입니다.
	setupOnce sync.Once

	// 최초 초기화 시 생성된 Closer와 에러를 보관하여, 재호출 시 동일한 결과를 반환합니다.
	globalCloser   io.Closer
	globalSetupErr error
)

// Setup 전역 로깅 시스템을 초기화하고 옵션에 따라 파일/콘솔 출력을 구성합니다.
//
// 애플리케이션 시작 시점(main 함수 도입부)에 호출해야 하며,
// 반환된 Closer는 반드시 defer를 통해 해제되어야 합니다.
func Setup(opts Options) (io.Closer, error) {
	setupOnce.Do(func() {
		globalCloser, globalSetupErr = setupInternal(opts)
	})

	return globalCloser, globalSetupErr
}

func setupInternal(opts Options) (io.Closer, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("유효하지 않은 로그 설정: %w", err)
	}

	level := opts.Level
	if level == 0 {
		level = InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetReportCaller(opts.ReportCaller)

	// Logrus는 io.Discard로 출력을 버리더라도 포맷팅 연산은 수행하므로,
	// 기본 출력 경로에는 아무것도 하지 않는 포맷터를 설정하고 실제 포맷팅은 Hook에서 수행합니다.
	logrus.SetFormatter(&silentFormatter{})

	textFormatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		CallerPrettyfier: func(frame *runtime.Frame) (function string, file string) {
			function = frame.Function + "(line:" + strconv.Itoa(frame.Line) + ")"
			if opts.CallerPathPrefix != "" {
				if cut, found := strings.CutPrefix(function, opts.CallerPathPrefix); found {
					function = "..." + cut
				}
			}
			return
		},
	}

	logDir := opts.Dir
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("로그 디렉토리 생성 실패: %w", err)
	}

	maxSize := opts.MaxSizeMB
	if maxSize == 0 {
		maxSize = defaultMaxSizeMB
	}
	maxBackups := opts.MaxBackups
	if maxBackups == 0 {
		maxBackups = defaultMaxBackups
	}

	// 기본 출력(os.Stderr)은 비활성화하고 모든 로그 처리를 Hook에 위임합니다.
	logrus.SetOutput(io.Discard)

	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, fmt.Sprintf("%s.%s", opts.Name, fileExt)),
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   false,
		LocalTime:  true,
	}

	h := &hook{
		fileWriter: fileLogger,
		formatter:  textFormatter,
	}
	if opts.EnableConsoleLog {
		h.consoleWriter = os.Stdout
	}

	logrus.AddHook(h)

	c := &closer{
		closers: []io.Closer{fileLogger},
		hook:    h,
	}

	// Fatal 로그 발생 시(os.Exit 직전) 버퍼에 남은 로그를 디스크에 기록하고 리소스를 해제합니다.
	logrus.RegisterExitHandler(func() {
		_ = c.Close()
	})

	return c, nil
}

// silentFormatter 아무런 동작도 하지 않는 포맷터입니다. (실제 포맷팅은 Hook에서 수행)
type silentFormatter struct{}

func (f *silentFormatter) Format(_ *logrus.Entry) ([]byte, error) {
	return nil, nil
}
