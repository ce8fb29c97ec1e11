// Package service 애플리케이션을 구성하는 장수명 서비스들의 공통 계약을 정의합니다.
package service

import (
	"context"
	"sync"
)

// Service 애플리케이션 구동 시 시작되고 종료 신호에 맞추어 정리되는 장수명 컴포넌트입니다.
//
// Start는 비동기적으로 동작을 시작한 뒤 즉시 반환해야 하며, serviceStopCtx가 취소되면
// 진행 중인 작업을 정리하고 serviceStopWG.Done()을 호출하여 종료를 알립니다.
type Service interface {
	Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error
}
