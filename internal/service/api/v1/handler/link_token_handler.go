package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	"github.com/darkkaiser/cardwatch-server/internal/service/api/httputil"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// linkTokenTTLSeconds 발급된 연결 토큰의 유효 시간(초)입니다. 저장소의 TTL 인덱스와 일치해야 합니다.
const linkTokenTTLSeconds = 900

// LinkTokenRequest 채널 연결 토큰 발급 요청입니다.
type LinkTokenRequest struct {
	UserID  string `json:"user_id"`
	Channel string `json:"channel"`
}

// LinkTokenResponse 발급된 채널 연결 토큰 응답입니다.
//
// 사용자는 반환된 토큰을 해당 채널의 봇에게 전달하여
// (텔레그램: "/start <token>", 디스코드: "!link <token>") 계정을 연결합니다.
type LinkTokenResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	ExpiresIn int    `json:"expires_in"`
}

// MintLinkTokenHandler 채널 연결용 일회용 토큰을 발급합니다.
func (h *Handler) MintLinkTokenHandler(c echo.Context) error {
	req := new(LinkTokenRequest)
	if err := c.Bind(req); err != nil {
		return httputil.NewBadRequestError("잘못된 요청 형식입니다")
	}

	if req.UserID == "" {
		return httputil.NewBadRequestError("user_id는 필수입니다")
	}

	channel, ok := parseChannel(req.Channel)
	if !ok {
		return httputil.NewBadRequestError("channel은 telegram 또는 discord여야 합니다")
	}

	token, err := h.tokens.Mint(c.Request().Context(), req.UserID, channel)
	if err != nil {
		h.log(c).WithFields(applog.Fields{
			"user_id": req.UserID,
			"channel": channel,
			"error":   err,
		}).Error("연결 토큰 발급 실패")

		return httputil.NewInternalServerError("연결 토큰 발급에 실패하였습니다")
	}

	h.log(c).WithFields(applog.Fields{
		"user_id": req.UserID,
		"channel": channel,
	}).Info("연결 토큰 발급 성공")

	return c.JSON(http.StatusCreated, LinkTokenResponse{
		Token:     token.Token,
		UserID:    token.UserID,
		Channel:   string(token.Channel),
		ExpiresIn: linkTokenTTLSeconds,
	})
}

// parseChannel 요청 문자열을 알림 채널로 변환합니다.
func parseChannel(s string) (model.Channel, bool) {
	switch model.Channel(s) {
	case model.ChannelTelegram:
		return model.ChannelTelegram, true
	case model.ChannelDiscord:
		return model.ChannelDiscord, true
	default:
		return "", false
	}
}
