package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	"github.com/darkkaiser/cardwatch-server/internal/service/api/httputil"
	applog "github.com/darkkaiser/cardwatch-server/pkg/log"
)

// BestOfferResponse 상품의 현재 최저가 제안 응답입니다.
type BestOfferResponse struct {
	ProductID   string    `json:"product_id"`
	ShopID      string    `json:"shop_id"`
	ProductURL  string    `json:"product_url"`
	Price       float64   `json:"price"`
	IsAvailable bool      `json:"is_available"`
	Timestamp   time.Time `json:"timestamp"`
}

// BestOfferHandler 현재 시간 버킷 기준으로 상품의 최저가 제안을 반환합니다.
//
// 판매 중이면서 가격이 확인된 관측 결과 중 최저가를 선택하며,
// 해당 버킷에 그런 결과가 없으면 404를 반환합니다.
func (h *Handler) BestOfferHandler(c echo.Context) error {
	productID := c.Param("productId")
	if productID == "" {
		return httputil.NewBadRequestError("상품 ID가 필요합니다")
	}

	offer, err := h.offers.BestOfferForProduct(c.Request().Context(), productID, time.Now())
	if err != nil {
		if apperrors.Is(err, apperrors.NotFound) {
			return httputil.NewNotFoundError("현재 판매 중인 제안이 없습니다")
		}

		h.log(c).WithFields(applog.Fields{
			"product_id": productID,
			"error":      err,
		}).Error("최저가 제안 조회 실패")

		return httputil.NewInternalServerError("최저가 제안 조회에 실패하였습니다")
	}

	resp := BestOfferResponse{
		ProductID:   offer.ProductID,
		ShopID:      offer.ShopID,
		ProductURL:  offer.ProductURL,
		IsAvailable: offer.IsAvailable,
		Timestamp:   offer.Timestamp,
	}
	if offer.Price != nil {
		resp.Price = *offer.Price
	}

	return c.JSON(http.StatusOK, resp)
}
