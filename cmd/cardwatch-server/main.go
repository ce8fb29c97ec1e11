package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/darkkaiser/cardwatch-server/internal/config"
	"github.com/darkkaiser/cardwatch-server/internal/pkg/version"
	"github.com/darkkaiser/cardwatch-server/internal/service"
	"github.com/darkkaiser/cardwatch-server/internal/service/api"
	"github.com/darkkaiser/cardwatch-server/internal/service/dispatch"
	"github.com/darkkaiser/cardwatch-server/internal/service/notification"
	"github.com/darkkaiser/cardwatch-server/internal/service/scrape"
	"github.com/darkkaiser/cardwatch-server/internal/service/watcher"
	"github.com/darkkaiser/cardwatch-server/internal/storage/mongodb"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// 빌드 정보 변수 (빌드 시 ldflags로 주입됨)
var (
	Version     = "dev"     // Git 커밋 해시
	BuildDate   = "unknown" // 빌드 날짜
	BuildNumber = "0"       // 빌드 번호
)

const (
	banner = `
  ____                   _ __        __     _         _
 / ___|  __ _  _ __   __| |\ \      / /__ _| |_  ___ | |__
| |     / _` + "`" + ` || '__| / _` + "`" + ` | \ \ /\ / // _` + "`" + ` | __|/ __|| '_ \
| |___ | (_| || |   | (_| |  \ V  V /| (_| | |_| (__ | | | |
 \____| \__,_||_|    \__,_|   \_/\_/  \__,_|\__|\___||_| |_|
                                                  %s
--------------------------------------------------------------------------------
`
)

func main() {
	// 1. 환경설정 로드 (로그 설정에 필요하므로 가장 먼저 수행한다)
	appConfig, err := config.Load()
	if err != nil {
		// 로거 초기화 전이므로 표준 에러에 출력
		fmt.Fprintf(os.Stderr, "[FATAL] 환경설정 로드 실패: %v\n", err)
		os.Exit(1)
	}

	// 2. 로그 시스템 초기화
	var logOpts applog.Options
	if appConfig.Debug {
		logOpts = applog.NewDevelopmentOptions(config.AppName)
	} else {
		logOpts = applog.NewProductionOptions(config.AppName)
	}

	appLogCloser, err := applog.Setup(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] 로그 시스템 초기화 실패. 서버 구동을 중단합니다. (Cause: %v)\n", err)
		os.Exit(1)
	}
	defer appLogCloser.Close()

	// 3. 로그 레벨 최종 확정
	applog.SetDebugMode(appConfig.Debug)

	fmt.Printf(banner, Version)

	// 빌드 정보 설정 (전역 싱글톤 등록)
	buildInfo := version.Info{
		Version:     Version,
		BuildDate:   BuildDate,
		BuildNumber: BuildNumber,
		GoVersion:   runtime.Version(),
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
	}
	version.Set(buildInfo)

	applog.WithComponentAndFields("main", log.Fields{
		"version": buildInfo.String(),
		"env":     map[bool]string{true: "development", false: "production"}[appConfig.Debug],
	}).Info("서버 초기화 시작")

	// 4. 상점 설정 로드
	shops, err := config.LoadShopConfigs(appConfig.Watch.ShopConfigDir)
	if err != nil {
		log.Fatalf("상점 설정 로드 실패: %v", err)
	}

	// 5. 저장소 연결
	storageClient, err := mongodb.NewClient(context.Background(), appConfig.Mongo)
	if err != nil {
		log.Fatalf("저장소 초기화 실패: %v", err)
	}
	defer func() {
		if err := storageClient.Close(context.Background()); err != nil {
			applog.WithComponentAndFields("main", log.Fields{
				"error": err,
			}).Error("저장소 연결 해제 실패")
		}
	}()

	// 6. 알림 채널 어댑터 생성 (설정된 채널만)
	var adapters []dispatch.Adapter
	var notifierServices []service.Service

	if appConfig.Notifiers.Telegram.Enabled() {
		telegramNotifier, err := notification.NewTelegramNotifier(appConfig.Notifiers.Telegram.BotToken, storageClient.LinkTokens(), storageClient.Watches())
		if err != nil {
			log.Fatalf("텔레그램 채널 초기화 실패: %v", err)
		}
		adapters = append(adapters, telegramNotifier)
		notifierServices = append(notifierServices, telegramNotifier)
	}

	if appConfig.Notifiers.Discord.Enabled() {
		discordNotifier, err := notification.NewDiscordNotifier(appConfig.Notifiers.Discord.BotToken, storageClient.LinkTokens(), storageClient.Watches())
		if err != nil {
			log.Fatalf("디스코드 채널 초기화 실패: %v", err)
		}
		adapters = append(adapters, discordNotifier)
		notifierServices = append(notifierServices, discordNotifier)
	}

	// 7. 디스패처 생성
	dispatcher := dispatch.NewDispatcher(storageClient.Watches(), storageClient.States(), storageClient.Notifications(), adapters, dispatch.Options{
		FlushBatchSize:  appConfig.Watch.FlushBatchSize,
		FlushBatchDelay: appConfig.Watch.FlushBatchDelayDuration(),
		QueueHighWater:  appConfig.Watch.QueueHighWater,
	})

	// 8. 상점별 스크래핑 엔진 팩토리 구성
	engineProvider := watcher.NewEngineProvider(appConfig.Proxy)
	defer engineProvider.Close()

	engineFactories := make(map[string]scrape.EngineFactory, len(shops))
	for _, shop := range shops {
		factory, err := engineProvider.FactoryFor(context.Background(), shop)
		if err != nil {
			log.Fatalf("상점 '%s'의 스크래핑 엔진 초기화 실패: %v", shop.ID, err)
		}
		engineFactories[shop.ID] = factory
	}

	// 9. 서비스 생성
	watcherService := watcher.NewService(appConfig, shops, engineFactories, storageClient.Catalog(), storageClient.Results(), dispatcher)
	apiService := api.NewService(appConfig, storageClient, storageClient.Results(), storageClient.LinkTokens(), buildInfo)

	serviceStopCtx, cancel := context.WithCancel(context.Background())
	serviceStopWG := &sync.WaitGroup{}

	// 10. 서비스를 시작한다.
	services := append(notifierServices, watcherService, apiService)
	for _, s := range services {
		serviceStopWG.Add(1)
		if err := s.Start(serviceStopCtx, serviceStopWG); err != nil {
			applog.WithComponentAndFields("main", log.Fields{
				"error": err,
			}).Error("서비스 초기화 실패")

			cancel() // 다른 서비스들도 종료
			serviceStopWG.Wait()

			log.Fatal("서비스 초기화 실패로 프로그램을 종료합니다")
		}
	}

	termC := make(chan os.Signal, 1)
	signal.Notify(termC, syscall.SIGINT, syscall.SIGTERM)

	applog.WithComponent("main").Info("서버 가동 완료")

	<-termC // 종료 신호를 받을 때까지 대기

	applog.WithComponent("main").Info("종료 신호를 수신하였습니다")
	cancel()             // 모든 서비스에 종료 신호 전파
	serviceStopWG.Wait() // 모든 서비스의 정리 완료 대기
}
