package engine

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/darkkaiser/cardwatch-server/internal/model"
	apperrors "github.com/darkkaiser/cardwatch-server/internal/pkg/errors"
	"github.com/darkkaiser/cardwatch-server/pkg/strutil"
)

// page 파싱된 HTML 문서와 문서 전체에 대한 셀렉터 질의를 담당합니다.
// StaticEngine과 HeadlessEngine이 공유하는 추출 코어입니다.
type page struct {
	root *html.Node
	url  string
}

// parsePage HTML 스트림을 파싱하여 page를 생성합니다.
// Content-Type 헤더를 기반으로 비 UTF-8 인코딩(예: ISO-8859-2)도 자동으로 변환합니다.
func parsePage(r io.Reader, contentType, url string) (*page, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ExecutionFailed, "페이지의 인코딩 변환이 실패하였습니다")
	}

	root, err := html.Parse(utf8Reader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ParsingFailed, "페이지의 HTML 파싱이 실패하였습니다")
	}

	return &page{root: root, url: url}, nil
}

// Element 문서 내의 단일 요소 스코프입니다. 검색 결과의 상품 블록처럼
// 요소를 기준으로 한 상대 질의에 사용됩니다.
type Element struct {
	node *html.Node
}

// Extract 요소 스코프 내에서 셀렉터의 첫 번째 유효한 추출 결과를 반환합니다.
func (e Element) Extract(sel *model.Selector) (string, bool) {
	return extract(e.node, sel)
}

// Exists 요소 스코프 내에 셀렉터 목록 중 하나라도 일치하는 요소가 있는지 확인합니다.
func (e Element) Exists(sels model.SelectorList) bool {
	return exists(e.node, sels)
}

// extract 셀렉터의 폴백 목록을 순서대로 시도하여 첫 번째 유효한(비어 있지 않은) 추출 결과를 반환합니다.
//
// 에러 정책: 개별 질의의 실패(잘못된 표현식, 요소 없음)는 조용히 무시하고
// 다음 폴백을 시도합니다. 목록을 모두 소진하면 (_, false)를 반환합니다.
func extract(scope *html.Node, sel *model.Selector) (string, bool) {
	if scope == nil || sel == nil {
		return "", false
	}

	for _, value := range sel.Values {
		// text 타입은 요소 질의가 아닌 텍스트 포함 검사입니다.
		// 스코프의 전체 텍스트에 value 리터럴이 포함되어 있으면 해당 리터럴을 추출 결과로 반환합니다.
		if sel.Type == model.SelectorText {
			if strings.Contains(strutil.Fold(htmlquery.InnerText(scope)), strutil.Fold(value)) {
				return value, true
			}
			continue
		}

		for _, node := range findNodes(scope, sel.Type, value) {
			if text, ok := extractFromNode(node, sel); ok {
				return text, true
			}
		}
	}

	return "", false
}

// extractAll 셀렉터에 일치하는 모든 요소를 Element 목록으로 반환합니다.
// 폴백 목록 중 첫 번째로 하나 이상의 요소를 찾은 질의의 결과가 사용됩니다.
func extractAll(scope *html.Node, sel *model.Selector) []Element {
	if scope == nil || sel == nil {
		return nil
	}

	for _, value := range sel.Values {
		nodes := findNodes(scope, sel.Type, value)
		if len(nodes) == 0 {
			continue
		}

		elements := make([]Element, 0, len(nodes))
		for _, node := range nodes {
			elements = append(elements, Element{node: node})
		}
		return elements
	}

	return nil
}

// exists 셀렉터 목록 중 하나라도 스코프 내에서 유효한 추출 결과를 내는지 확인합니다.
func exists(scope *html.Node, sels model.SelectorList) bool {
	for i := range sels {
		if _, ok := extract(scope, &sels[i]); ok {
			return true
		}
		// matchText가 없는 요소 질의는 텍스트가 비어 있어도 요소 존재 자체를 신호로 간주합니다.
		// (예: 장바구니 버튼처럼 텍스트 없이 존재 여부만 의미 있는 요소)
		if sels[i].MatchText == "" && sels[i].Type != model.SelectorText {
			for _, value := range sels[i].Values {
				if len(findNodes(scope, sels[i].Type, value)) > 0 {
					return true
				}
			}
		}
	}
	return false
}

// findNodes 질의 방식(css/xpath)에 따라 스코프 내에서 일치하는 요소들을 찾습니다.
// 잘못된 표현식은 빈 결과로 처리됩니다.
func findNodes(scope *html.Node, selType model.SelectorType, value string) []*html.Node {
	switch selType {
	case model.SelectorCSS:
		doc := goquery.NewDocumentFromNode(scope)
		return doc.Find(value).Nodes

	case model.SelectorXPath:
		// 스코프를 컨텍스트 노드로 하여 평가하므로, 요소 기준 상대 질의도 동일하게 동작합니다.
		nodes, err := htmlquery.QueryAll(scope, value)
		if err != nil {
			return nil
		}
		return nodes

	default:
		return nil
	}
}

// extractFromNode 요소에서 설정된 추출 모드에 따라 값을 추출합니다.
// 빈 문자열은 실패(null)로 간주되어 폴백 진행을 유도합니다.
func extractFromNode(node *html.Node, sel *model.Selector) (string, bool) {
	var text string

	switch sel.Extract {
	case model.ExtractHref:
		text = strings.TrimSpace(htmlquery.SelectAttr(node, "href"))

	case model.ExtractInnerHTML:
		var buf bytes.Buffer
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if err := html.Render(&buf, child); err != nil {
				return "", false
			}
		}
		text = strings.TrimSpace(buf.String())

	default: // text
		text = strutil.NormalizeSpaces(htmlquery.InnerText(node))
	}

	if text == "" {
		return "", false
	}

	// matchText가 설정된 경우, 추출된 텍스트가 리터럴과 (대소문자 무시, 공백 정규화 기준으로)
	// 동일할 때만 성공으로 간주합니다.
	if sel.MatchText != "" && !strutil.EqualFold(strutil.NormalizeSpaces(text), strutil.NormalizeSpaces(sel.MatchText)) {
		return "", false
	}

	return text, true
}
