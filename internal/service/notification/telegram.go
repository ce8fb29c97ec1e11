package notification

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	"github.com/darkkaiser/cardwatch-server/pkg/concurrency"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// telegramUpdateTimeout 텔레그램 long-polling의 대기 시간(초)입니다.
const telegramUpdateTimeout = 60

// TelegramNotifier 텔레그램 채널 어댑터입니다.
//
// 알림 전송(Send)과 채널 연결 토큰 수신(/start <token>)을 함께 담당합니다.
// 같은 채팅으로 향하는 메시지들은 채팅 ID 단위로 직렬화됩니다.
type TelegramNotifier struct {
	bot       *tgbotapi.BotAPI
	chatLocks *concurrency.KeyedMutex
	linker    *linker
	logger    *log.Entry
}

// NewTelegramNotifier 텔레그램 봇을 생성하고 어댑터를 초기화합니다.
func NewTelegramNotifier(botToken string, tokens TokenConsumer, binder TargetBinder) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unauthorized, "텔레그램 봇 초기화에 실패하였습니다. 봇 토큰을 확인하세요")
	}

	n := &TelegramNotifier{
		bot:       bot,
		chatLocks: concurrency.NewKeyedMutex(),
		linker:    &linker{tokens: tokens, binder: binder},
		logger:    applog.WithComponent("notifier.telegram"),
	}

	n.logger.WithField("account", bot.Self.UserName).Info("텔레그램 봇이 초기화되었습니다.")
	return n, nil
}

// Name 어댑터가 담당하는 채널을 반환합니다.
func (n *TelegramNotifier) Name() model.Channel {
	return model.ChannelTelegram
}

// Send 지정된 채팅으로 알림을 전송합니다. channelTarget은 텔레그램 채팅 ID입니다.
func (n *TelegramNotifier) Send(ctx context.Context, channelTarget string, payload model.NotificationPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(channelTarget, 10, 64)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.InvalidInput, "텔레그램 채팅 ID(%s) 형식이 올바르지 않습니다", channelTarget)
	}

	// 같은 채팅으로 향하는 메시지의 순서 경합을 막는다.
	n.chatLocks.Lock(channelTarget)
	defer n.chatLocks.Unlock(channelTarget)

	msg := tgbotapi.NewMessage(chatID, RenderHTML(payload))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, "텔레그램 메시지 전송에 실패하였습니다")
	}
	return nil
}

// Start 텔레그램 수신 루프를 시작합니다. /start <token> 메시지로 채널 연결 토큰을 소비합니다.
func (n *TelegramNotifier) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = telegramUpdateTimeout

	updateC := n.bot.GetUpdatesChan(config)

	go func() {
		defer serviceStopWG.Done()

		n.logger.Debug("텔레그램 수신 루프가 시작되었습니다.")

		for {
			select {
			case update := <-updateC:
				if update.Message == nil {
					continue
				}
				n.handleMessage(serviceStopCtx, update.Message)

			case <-serviceStopCtx.Done():
				n.bot.StopReceivingUpdates()
				n.logger.Debug("텔레그램 수신 루프가 중지되었습니다.")
				return
			}
		}
	}()

	return nil
}

// handleMessage 수신 메시지를 처리합니다. 연결 토큰이 아닌 메시지에는 안내만 회신합니다.
func (n *TelegramNotifier) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	token, ok := parseStartCommand(message.Text)
	if !ok {
		n.reply(chatID, "Cześć! Aby połączyć konto, użyj linku z aplikacji cardwatch.")
		return
	}

	_, err := n.linker.link(ctx, token, model.ChannelTelegram, strconv.FormatInt(chatID, 10))
	if err != nil {
		n.logger.WithFields(applog.Fields{"chat_id": chatID, "error": err.Error()}).
			Warn("텔레그램 채널 연결에 실패하였습니다.")
		n.reply(chatID, "Ten link jest nieprawidłowy lub wygasł. Wygeneruj nowy w aplikacji cardwatch.")
		return
	}

	n.logger.WithField("chat_id", chatID).Info("텔레그램 채널이 연결되었습니다.")
	n.reply(chatID, "✅ Konto połączone! Od teraz będziesz otrzymywać powiadomienia o cenach.")
}

func (n *TelegramNotifier) reply(chatID int64, text string) {
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		n.logger.WithFields(applog.Fields{"chat_id": chatID, "error": err.Error()}).
			Warn("텔레그램 회신 전송에 실패하였습니다.")
	}
}

// parseStartCommand "/start <token>" 형식의 메시지에서 토큰을 추출합니다.
func parseStartCommand(text string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 || fields[0] != "/start" {
		return "", false
	}
	return fields[1], true
}
