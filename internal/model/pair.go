package model

import (
	"fmt"
	"strings"
)

// ProviderKind names the data provider an asset is bound to.
type ProviderKind string

const (
	// ProviderCryptoCompare serves full OHLCV bars (primary).
	ProviderCryptoCompare ProviderKind = "cryptocompare"
	// ProviderCoinGecko serves close-only quotes (secondary).
	ProviderCoinGecko ProviderKind = "coingecko"
)

// AssetRef binds a provider-specific asset identifier to its provider.
type AssetRef struct {
	Symbol   string       `yaml:"symbol" json:"symbol"`
	Provider ProviderKind `yaml:"provider" json:"provider"`
}

func (a AssetRef) String() string {
	return fmt.Sprintf("%s@%s", a.Symbol, a.Provider)
}

// LegRole selects one of the required legs of a pair.
type LegRole string

const (
	RoleNumerator   LegRole = "numerator"
	RoleDenominator LegRole = "denominator"
)

// OptionalLeg is a best-effort asset ratioed against one of the required legs.
// By default the optional asset is the numerator; Invert swaps the roles.
type OptionalLeg struct {
	Name    string   `yaml:"name" json:"name"`
	Asset   AssetRef `yaml:"asset" json:"asset"`
	Against LegRole  `yaml:"against" json:"against"`
	Invert  bool     `yaml:"invert" json:"invert"`
}

// Pair is a named numerator/denominator association, defined by configuration.
type Pair struct {
	Name        string       `yaml:"name" json:"name"`
	Numerator   AssetRef     `yaml:"numerator" json:"numerator"`
	Denominator AssetRef     `yaml:"denominator" json:"denominator"`
	Optional    *OptionalLeg `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Slug is the URL-safe form of the pair name, e.g. "chz-btc".
func (p Pair) Slug() string {
	return strings.ToLower(strings.ReplaceAll(p.Name, "/", "-"))
}
