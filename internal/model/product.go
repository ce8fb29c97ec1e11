// Package model 감시 대상 상품, 상점 설정, 수집 결과 등 도메인 엔티티를 정의합니다.
package model

import (
	"github.com/iancoleman/strcase"

	"github.com/darkkaiser/cardwatch-server/pkg/strutil"
)

// NewProductID 상품명으로부터 kebab-case 형식의 상품 ID를 생성합니다.
// 예: "151 Booster Bundle" -> "151-booster-bundle"
func NewProductID(name string) string {
	return strcase.ToKebab(strutil.NormalizeSpaces(name))
}

// SearchSpec 상품 검색 시 사용할 검색어와 제외어를 정의합니다.
type SearchSpec struct {
	// Phrases 후보 상품명에 모두 포함되어야 하는 검색 문구 목록입니다. (AND 조건)
	// 첫 번째 문구가 상점 검색창에 입력되는 기본 검색어로 사용됩니다.
	Phrases []string `json:"phrases" bson:"phrases"`

	// Exclude 후보 상품명에 하나라도 포함되면 매칭에서 제외되는 문구 목록입니다.
	Exclude []string `json:"exclude,omitempty" bson:"exclude,omitempty"`

	// Override true인 경우 상품 유형(ProductType)의 기본 검색 설정을 병합하지 않고
	// 이 설정만 단독으로 사용합니다.
	Override bool `json:"override,omitempty" bson:"override,omitempty"`
}

// PriceBound 상품의 카탈로그 수준 가격 범위입니다.
type PriceBound struct {
	Max float64  `json:"max" bson:"max"`
	Min *float64 `json:"min,omitempty" bson:"min,omitempty"`
}

// Product 감시 카탈로그에 등록된 상품입니다.
//
// 관리자 플로우(외부)에서 생성/수정되며, 본 시스템은 사이클 시작 시점에 읽기만 수행합니다.
type Product struct {
	ID            string      `json:"id" bson:"_id"`
	Name          string      `json:"name" bson:"name"`
	ProductSetID  string      `json:"productSetId,omitempty" bson:"product_set_id,omitempty"`
	ProductTypeID string      `json:"productTypeId,omitempty" bson:"product_type_id,omitempty"`
	Search        *SearchSpec `json:"search,omitempty" bson:"search,omitempty"`
	Price         *PriceBound `json:"price,omitempty" bson:"price,omitempty"`
	Disabled      bool        `json:"disabled,omitempty" bson:"disabled,omitempty"`
}

// ProductType 상품 유형(예: Booster Box, Elite Trainer Box)입니다.
// 유형 수준의 기본 검색 설정을 제공합니다.
type ProductType struct {
	ID     string      `json:"id" bson:"_id"`
	Name   string      `json:"name" bson:"name"`
	Search *SearchSpec `json:"search,omitempty" bson:"search,omitempty"`
}

// ProductSet 상품이 속한 세트(확장팩)입니다.
type ProductSet struct {
	ID         string `json:"id" bson:"_id"`
	Name       string `json:"name" bson:"name"`
	SeriesName string `json:"seriesName,omitempty" bson:"series_name,omitempty"`
}

// ResolvedProduct 검색 문구와 제외어가 완전히 확정된 상품입니다.
//
// 상품 자체의 SearchSpec과 상품 유형의 기본 SearchSpec을 병합(Override가 아닌 경우)하고,
// 제네릭 세트 보호 규칙까지 적용한 결과물로, Phrases가 비어있지 않음을 보장합니다.
type ResolvedProduct struct {
	Product

	// Phrases 확정된 검색 문구 목록 (항상 1개 이상)
	Phrases []string

	// Exclude 확정된 제외 문구 목록
	Exclude []string
}

// PrimaryPhrase 상점 검색창에 입력할 기본 검색어를 반환합니다.
func (p *ResolvedProduct) PrimaryPhrase() string {
	if len(p.Phrases) == 0 {
		return ""
	}
	return p.Phrases[0]
}

// ResolveProduct 상품의 검색 설정을 확정합니다.
//
// 병합 규칙:
//  1. 상품의 Search.Override가 true이면 상품 설정만 사용합니다.
//  2. 그 외에는 상품 유형의 기본 Phrases/Exclude 뒤에 상품의 설정을 이어붙입니다.
//  3. 검색 문구가 하나도 없으면 상품명 자체를 검색 문구로 사용합니다.
//
// 제네릭 세트 보호:
// 상품이 속한 세트의 이름이 시리즈명과 동일한 경우(세트명이 시리즈명을 그대로 쓰는
// "제네릭 세트"), 같은 시리즈의 다른 세트명들이 자동으로 제외어에 추가됩니다.
// 이는 "Scarlet & Violet Booster Box" 검색이 "Scarlet & Violet - 151 Booster Box"와 같은
// 하위 세트 상품에 오매칭되는 것을 방지합니다.
func ResolveProduct(p Product, productType *ProductType, set *ProductSet, seriesSiblings []ProductSet) ResolvedProduct {
	resolved := ResolvedProduct{Product: p}

	var base *SearchSpec
	if productType != nil {
		base = productType.Search
	}

	switch {
	case p.Search != nil && p.Search.Override:
		resolved.Phrases = append(resolved.Phrases, p.Search.Phrases...)
		resolved.Exclude = append(resolved.Exclude, p.Search.Exclude...)
	default:
		if base != nil {
			resolved.Phrases = append(resolved.Phrases, base.Phrases...)
			resolved.Exclude = append(resolved.Exclude, base.Exclude...)
		}
		if p.Search != nil {
			resolved.Phrases = append(resolved.Phrases, p.Search.Phrases...)
			resolved.Exclude = append(resolved.Exclude, p.Search.Exclude...)
		}
	}

	if len(resolved.Phrases) == 0 {
		resolved.Phrases = []string{p.Name}
	}

	// 제네릭 세트 보호: 세트명이 시리즈명과 동일한 경우에만 발동합니다.
	if p.ProductSetID != "" && set != nil && set.SeriesName != "" && strutil.EqualFold(set.Name, set.SeriesName) {
		for _, sibling := range seriesSiblings {
			if sibling.ID == set.ID {
				continue
			}
			if !strutil.EqualFold(sibling.SeriesName, set.SeriesName) {
				continue
			}
			resolved.Exclude = append(resolved.Exclude, sibling.Name)
		}
	}

	return resolved
}
