package market

import "strings"

// AssetMeta describes a tradable crypto asset.
type AssetMeta struct {
	Symbol      string
	Name        string
	CoinGeckoID string
}

var Assets = map[string]AssetMeta{
	"BTC":  {Symbol: "BTC", Name: "Bitcoin", CoinGeckoID: "bitcoin"},
	"ETH":  {Symbol: "ETH", Name: "Ethereum", CoinGeckoID: "ethereum"},
	"SOL":  {Symbol: "SOL", Name: "Solana", CoinGeckoID: "solana"},
	"XRP":  {Symbol: "XRP", Name: "XRP", CoinGeckoID: "ripple"},
	"ADA":  {Symbol: "ADA", Name: "Cardano", CoinGeckoID: "cardano"},
	"DOGE": {Symbol: "DOGE", Name: "Dogecoin", CoinGeckoID: "dogecoin"},
	"DOT":  {Symbol: "DOT", Name: "Polkadot", CoinGeckoID: "polkadot"},
	"AVAX": {Symbol: "AVAX", Name: "Avalanche", CoinGeckoID: "avalanche-2"},
	"LINK": {Symbol: "LINK", Name: "Chainlink", CoinGeckoID: "chainlink"},
	"LTC":  {Symbol: "LTC", Name: "Litecoin", CoinGeckoID: "litecoin"},
}

var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "USD"}

// BaseAsset reduces exchange symbols such as BTCUSDT, BTC-USD, btc/usd or
// BTC_USD to their base asset (BTC).
func BaseAsset(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"-", "/", "_"} {
		if i := strings.Index(s, sep); i > 0 {
			return s[:i]
		}
	}
	for _, suf := range quoteSuffixes {
		if len(s) > len(suf) && strings.HasSuffix(s, suf) {
			return strings.TrimSuffix(s, suf)
		}
	}
	return s
}

// DisplayName returns a human name for a symbol, falling back to the base asset.
func DisplayName(symbol string) string {
	base := BaseAsset(symbol)
	if a, ok := Assets[base]; ok {
		return a.Name
	}
	return base
}

// CoinGeckoID maps a symbol to its CoinGecko coin id.
func CoinGeckoID(symbol string) string {
	base := BaseAsset(symbol)
	if a, ok := Assets[base]; ok {
		return a.CoinGeckoID
	}
	return strings.ToLower(base)
}
