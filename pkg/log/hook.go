package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// hook 단일 로그 이벤트를 파일과 콘솔로 분배하는 logrus Hook 구현체입니다.
//
// 파일 출력은 lumberjack을 통해 로테이션되며, 콘솔 출력은 개발 환경에서만 활성화됩니다.
// Close() 이후에는 모든 기록 요청을 거부하여 닫힌 Writer에 대한 쓰기를 방지합니다.
type hook struct {
	fileWriter    io.Writer // 로테이션되는 로그 파일
	consoleWriter io.Writer // 표준 출력 (개발 환경 전용, nil 가능)

	formatter Formatter

	mu     sync.RWMutex // 로그 기록(Read Lock)과 종료 처리(Write Lock) 간의 동시성 제어
	closed bool
}

// Formatter logrus.Formatter의 별칭입니다.
type Formatter interface {
	Format(*Entry) ([]byte, error)
}

// Levels 이 Hook이 수신할 로그 레벨의 집합을 반환합니다.
func (h *hook) Levels() []Level {
	return AllLevels
}

// Fire 발생한 로그 이벤트를 포맷팅하여 파일과 콘솔에 기록합니다.
func (h *hook) Fire(entry *Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	msg, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	// 콘솔 쓰기 실패는 전체 로깅 시스템의 가용성에 영향을 주지 않도록 전파하지 않습니다.
	if h.consoleWriter != nil {
		if _, err := h.consoleWriter.Write(msg); err != nil {
			fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-WARN] 표준 출력(Console) 쓰기 실패: %v\n", err)
		}
	}

	if h.fileWriter != nil {
		if _, err := h.fileWriter.Write(msg); err != nil {
			// 파일 기록 실패는 운영 기록의 공백을 의미하므로 즉시 표준 에러로 알립니다.
			fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-FAILURE] 로그 파일 쓰기 실패 (운영 기록 유실 위험): %v\n", err)
			return err
		}
	}

	return nil
}

// Close Hook을 종료 상태로 전환하여 더 이상의 로그 기록을 차단합니다.
func (h *hook) Close() error {
	// Write Lock을 획득하여, 현재 실행 중인 모든 로깅 작업이 완료될 때까지 대기합니다.
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	return nil
}
