package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
)

var (
	validate = newValidator()

	// 텔레그램 봇 토큰 검증을 위한 정규식 (예: 123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11)
	telegramBotTokenRegex = regexp.MustCompile(`^\d{3,20}:[a-zA-Z0-9_-]{30,50}$`)
)

// newValidator 새로운 Validator 인스턴스를 생성하고 커스텀 유효성 검사 함수를 등록합니다.
func newValidator() *validator.Validate {
	v := validator.New()

	// 검증 에러가 났을 때, 에러 메시지에 Go 구조체 필드명(예: ListenPort) 대신 JSON 이름(예: listen_port)을 보여주도록 설정합니다.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// 텔레그램 봇 토큰 형식 검사기를 등록합니다.
	_ = v.RegisterValidation("telegram_bot_token", func(fl validator.FieldLevel) bool {
		return telegramBotTokenRegex.MatchString(fl.Field().String())
	})

	return v
}

// validateStruct 구조체의 유효성을 검사하고, 사용자 친화적인 에러 메시지를 반환합니다.
func validateStruct(s interface{}, contextName string) error {
	if err := validate.Struct(s); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			// 첫 번째 에러만 상세히 보고
			firstErr := validationErrors[0]
			return apperrors.New(apperrors.InvalidInput,
				fmt.Sprintf("%s 설정의 '%s' 필드가 유효하지 않습니다. (검증 규칙: %s)", contextName, firstErr.Field(), firstErr.Tag()))
		}
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("%s 설정의 유효성 검증에 실패했습니다", contextName))
	}
	return nil
}

// checkUniqueField 슬라이스 내의 특정 필드 값이 유일한지 검사합니다.
func checkUniqueField(data interface{}, fieldName, contextName string) error {
	if err := validate.Var(data, "unique="+fieldName); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range validationErrors {
				if fieldErr.Tag() == "unique" {
					return apperrors.New(apperrors.InvalidInput, fmt.Sprintf("중복된 %s ID가 존재합니다: '%v'", contextName, fieldErr.Value()))
				}
			}
		}
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("%s 중복 검사에 실패했습니다", contextName))
	}
	return nil
}
