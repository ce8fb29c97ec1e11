package notification

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	"github.com/darkkaiser/cardwatch-server/pkg/concurrency"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// linkCommandPrefix 디스코드에서 채널 연결 토큰을 제출하는 명령어입니다.
const linkCommandPrefix = "!link"

// DiscordNotifier 디스코드 채널 어댑터입니다.
//
// 알림 전송(Send)과 채널 연결 토큰 수신(!link <token>)을 함께 담당합니다.
// 같은 채널로 향하는 메시지들은 채널 ID 단위로 직렬화됩니다.
type DiscordNotifier struct {
	session      *discordgo.Session
	channelLocks *concurrency.KeyedMutex
	linker       *linker
	logger       *log.Entry
}

// NewDiscordNotifier 디스코드 세션을 생성하고 어댑터를 초기화합니다.
func NewDiscordNotifier(botToken string, tokens TokenConsumer, binder TargetBinder) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unauthorized, "디스코드 세션 초기화에 실패하였습니다. 봇 토큰을 확인하세요")
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	return &DiscordNotifier{
		session:      session,
		channelLocks: concurrency.NewKeyedMutex(),
		linker:       &linker{tokens: tokens, binder: binder},
		logger:       applog.WithComponent("notifier.discord"),
	}, nil
}

// Name 어댑터가 담당하는 채널을 반환합니다.
func (n *DiscordNotifier) Name() model.Channel {
	return model.ChannelDiscord
}

// Send 지정된 디스코드 채널로 알림을 전송합니다. channelTarget은 디스코드 채널 ID입니다.
//
// 전송 한도 초과(429) 응답을 받으면 retry_after만큼 대기한 뒤 1회 재시도합니다.
func (n *DiscordNotifier) Send(ctx context.Context, channelTarget string, payload model.NotificationPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.channelLocks.Lock(channelTarget)
	defer n.channelLocks.Unlock(channelTarget)

	content := RenderText(payload)

	_, err := n.session.ChannelMessageSend(channelTarget, content)
	if err == nil {
		return nil
	}

	retryAfter, ok := rateLimitRetryAfter(err)
	if !ok {
		return apperrors.Wrap(err, apperrors.Unavailable, "디스코드 메시지 전송에 실패하였습니다")
	}

	n.logger.WithFields(applog.Fields{"channel_id": channelTarget, "retry_after": retryAfter.String()}).
		Warn("디스코드 전송 한도에 도달하였습니다. 대기 후 재시도합니다.")

	timer := time.NewTimer(retryAfter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if _, err := n.session.ChannelMessageSend(channelTarget, content); err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, "디스코드 메시지 재전송에 실패하였습니다")
	}
	return nil
}

// rateLimitRetryAfter 429 응답에서 재시도 대기 시간을 추출합니다.
func rateLimitRetryAfter(err error) (time.Duration, bool) {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}

	// retry_after는 초 단위의 실수로 내려온다.
	retryAfter := gjson.GetBytes(restErr.ResponseBody, "retry_after")
	if !retryAfter.Exists() {
		return 0, false
	}
	return time.Duration(retryAfter.Float() * float64(time.Second)), true
}

// Start 디스코드 수신 세션을 시작합니다. "!link <token>" 메시지로 채널 연결 토큰을 소비합니다.
func (n *DiscordNotifier) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	n.session.AddHandler(func(_ *discordgo.Session, message *discordgo.MessageCreate) {
		if message.Author == nil || message.Author.Bot {
			return
		}
		n.handleMessage(serviceStopCtx, message)
	})

	if err := n.session.Open(); err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, "디스코드 게이트웨이 연결에 실패하였습니다")
	}

	go func() {
		defer serviceStopWG.Done()

		n.logger.Debug("디스코드 수신 세션이 시작되었습니다.")

		<-serviceStopCtx.Done()

		if err := n.session.Close(); err != nil {
			n.logger.WithField("error", err.Error()).Warn("디스코드 세션 종료 중 에러가 발생하였습니다.")
		}
		n.logger.Debug("디스코드 수신 세션이 중지되었습니다.")
	}()

	return nil
}

// handleMessage 수신 메시지를 처리합니다. "!link <token>" 명령만 의미를 가집니다.
func (n *DiscordNotifier) handleMessage(ctx context.Context, message *discordgo.MessageCreate) {
	fields := strings.Fields(strings.TrimSpace(message.Content))
	if len(fields) != 2 || fields[0] != linkCommandPrefix {
		return
	}

	_, err := n.linker.link(ctx, fields[1], model.ChannelDiscord, message.ChannelID)
	if err != nil {
		n.logger.WithFields(applog.Fields{"channel_id": message.ChannelID, "error": err.Error()}).
			Warn("디스코드 채널 연결에 실패하였습니다.")
		n.replyTo(message.ChannelID, "Ten link jest nieprawidłowy lub wygasł. Wygeneruj nowy w aplikacji cardwatch.")
		return
	}

	n.logger.WithField("channel_id", message.ChannelID).Info("디스코드 채널이 연결되었습니다.")
	n.replyTo(message.ChannelID, "✅ Konto połączone! Od teraz będziesz otrzymywać powiadomienia o cenach.")
}

func (n *DiscordNotifier) replyTo(channelID, text string) {
	if _, err := n.session.ChannelMessageSend(channelID, text); err != nil {
		n.logger.WithFields(applog.Fields{"channel_id": channelID, "error": err.Error()}).
			Warn("디스코드 회신 전송에 실패하였습니다.")
	}
}
