package assets

import (
	"strings"
)

var canonicalOverrides = map[string]string{
	"XAUUSD":      "XAUUSD",
	"XAUUSDM":     "XAUUSD",
	"GOLD":        "XAUUSD",
	"GOLDM":       "XAUUSD",
	"XAUUSDMICRO": "XAUUSD",
	"BTCUSD":      "BTCUSD",
	"BTCUSDM":     "BTCUSD",
	"BTCUSDTP":    "BTCUSD",
	"ETHUSD":      "ETHUSD",
	"ETHUSDM":     "ETHUSD",
	"EURUSD":      "EURUSD",
	"EURUSDM":     "EURUSD",
	"GBPUSD":      "GBPUSD",
	"GBPUSDM":     "GBPUSD",
}

var brokerSuffixes = []string{"MICRO", "MINI", "PRO"}

// CanonicalSymbol maps broker-specific aliases (XAUUSDm, xauusd.micro, GOLD) to the asset key.
func CanonicalSymbol(symbol string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(symbol)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return ""
	}
	if v, ok := canonicalOverrides[s]; ok {
		return v
	}
	for _, suffix := range brokerSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}
	if len(s) > 1 && strings.HasSuffix(s, "M") {
		s = strings.TrimSuffix(s, "M")
	}
	if v, ok := canonicalOverrides[s]; ok {
		return v
	}
	return s
}

// SymbolsMatch compares two symbols after canonical normalisation.
func SymbolsMatch(a, b string) bool {
	return CanonicalSymbol(a) == CanonicalSymbol(b)
}

// IsForexPair reports a six-letter currency pair such as EURUSD.
func IsForexPair(symbol string) bool {
	s := CanonicalSymbol(symbol)
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return !strings.HasPrefix(s, "XAU") && !strings.HasPrefix(s, "XAG") && !strings.HasPrefix(s, "BTC") && !strings.HasPrefix(s, "ETH")
}
