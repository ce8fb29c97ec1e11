package log

import (
	"github.com/sirupsen/logrus"
)

// Level logrus.Level의 별칭입니다.
type Level = logrus.Level

const (
	// PanicLevel 로그 기록 후 panic()을 호출합니다. 복구 불가능한 내부 오류에 사용합니다.
	PanicLevel Level = logrus.PanicLevel

	// FatalLevel 로그 기록 후 os.Exit(1)로 프로세스를 종료합니다. 시작 실패 등 진행 불가 상황에 사용합니다.
	FatalLevel Level = logrus.FatalLevel

	// ErrorLevel 관리자의 개입이나 수정이 필요한 에러 상황입니다.
	ErrorLevel Level = logrus.ErrorLevel

	// WarnLevel 당장 에러는 아니지만 주의가 필요한 상태입니다.
	WarnLevel Level = logrus.WarnLevel

	// InfoLevel 시스템의 정상적인 동작 흐름을 기록합니다.
	InfoLevel Level = logrus.InfoLevel

	// DebugLevel 개발 및 문제 해결을 위한 상세 정보입니다.
	DebugLevel Level = logrus.DebugLevel

	// TraceLevel Debug보다 더 세밀한 내부 상태 추적용입니다.
	TraceLevel Level = logrus.TraceLevel
)

// AllLevels logrus.AllLevels의 별칭입니다.
var AllLevels = logrus.AllLevels

// Fields logrus.Fields의 별칭입니다.
type Fields = logrus.Fields

// Entry logrus.Entry의 별칭입니다.
type Entry = logrus.Entry
