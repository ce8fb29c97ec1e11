package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "151-booster-bundle", NewProductID("151 Booster Bundle"))
	assert.Equal(t, "surging-sparks-booster-box", NewProductID("  Surging   Sparks Booster Box "))
}

func TestResolveProduct_MergesTypeDefaults(t *testing.T) {
	t.Parallel()

	productType := &ProductType{
		ID:     "booster-box",
		Name:   "Booster Box",
		Search: &SearchSpec{Phrases: []string{"booster box"}, Exclude: []string{"japoński"}},
	}

	p := Product{
		ID:            "surging-sparks-booster-box",
		Name:          "Surging Sparks Booster Box",
		ProductTypeID: "booster-box",
		Search:        &SearchSpec{Phrases: []string{"surging sparks"}, Exclude: []string{"proxy"}},
	}

	resolved := ResolveProduct(p, productType, nil, nil)

	assert.Equal(t, []string{"booster box", "surging sparks"}, resolved.Phrases)
	assert.Equal(t, []string{"japoński", "proxy"}, resolved.Exclude)
	assert.Equal(t, "booster box", resolved.PrimaryPhrase())
}

func TestResolveProduct_OverrideSkipsTypeDefaults(t *testing.T) {
	t.Parallel()

	productType := &ProductType{
		ID:     "booster-box",
		Search: &SearchSpec{Phrases: []string{"booster box"}},
	}

	p := Product{
		ID:            "custom",
		Name:          "Custom",
		ProductTypeID: "booster-box",
		Search:        &SearchSpec{Phrases: []string{"tylko to"}, Override: true},
	}

	resolved := ResolveProduct(p, productType, nil, nil)
	assert.Equal(t, []string{"tylko to"}, resolved.Phrases)
}

func TestResolveProduct_FallsBackToProductName(t *testing.T) {
	t.Parallel()

	p := Product{ID: "x", Name: "151 Booster Bundle"}
	resolved := ResolveProduct(p, nil, nil, nil)

	require.Len(t, resolved.Phrases, 1)
	assert.Equal(t, "151 Booster Bundle", resolved.Phrases[0])
}

func TestResolveProduct_GenericSetProtection(t *testing.T) {
	t.Parallel()

	// 세트명이 시리즈명과 동일한 제네릭 세트: 같은 시리즈의 형제 세트명이 제외어에 추가된다.
	set := &ProductSet{ID: "sv", Name: "Scarlet & Violet", SeriesName: "Scarlet & Violet"}
	siblings := []ProductSet{
		{ID: "sv", Name: "Scarlet & Violet", SeriesName: "Scarlet & Violet"},
		{ID: "sv-151", Name: "151", SeriesName: "Scarlet & Violet"},
		{ID: "sv-paf", Name: "Paldean Fates", SeriesName: "Scarlet & Violet"},
		{ID: "swsh", Name: "Sword & Shield", SeriesName: "Sword & Shield"},
	}

	p := Product{ID: "sv-bb", Name: "Scarlet & Violet Booster Box", ProductSetID: "sv"}
	resolved := ResolveProduct(p, nil, set, siblings)

	assert.Contains(t, resolved.Exclude, "151")
	assert.Contains(t, resolved.Exclude, "Paldean Fates")
	assert.NotContains(t, resolved.Exclude, "Scarlet & Violet")
	assert.NotContains(t, resolved.Exclude, "Sword & Shield")
}

func TestResolveProduct_NonGenericSetNoProtection(t *testing.T) {
	t.Parallel()

	// 세트명이 시리즈명과 다르면 보호 규칙이 발동하지 않는다.
	set := &ProductSet{ID: "sv-151", Name: "151", SeriesName: "Scarlet & Violet"}
	siblings := []ProductSet{
		{ID: "sv-151", Name: "151", SeriesName: "Scarlet & Violet"},
		{ID: "sv-paf", Name: "Paldean Fates", SeriesName: "Scarlet & Violet"},
	}

	p := Product{ID: "151-bb", Name: "151 Booster Box", ProductSetID: "sv-151"}
	resolved := ResolveProduct(p, nil, set, siblings)

	assert.Empty(t, resolved.Exclude)
}
