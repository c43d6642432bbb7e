package state

import "strings"

var (
	promoProgramKey      = []byte("promo/program")
	promoAccountPrefix   = []byte("promo/account/")
	promoAccountIndexKey = []byte("promo/accounts")

	tokenListKey    = []byte("token/list")
	tokenPrefix     = "token/meta/"
	balancePrefix   = "token/balance/"
	allowancePrefix = "token/allowance/"
)

func promoAccountKey(addr [20]byte) []byte {
	buf := make([]byte, len(promoAccountPrefix)+len(addr))
	copy(buf, promoAccountPrefix)
	copy(buf[len(promoAccountPrefix):], addr[:])
	return buf
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func tokenMetadataKey(symbol string) []byte {
	return []byte(tokenPrefix + normalizeSymbol(symbol))
}

func balanceKey(symbol string, addr [20]byte) []byte {
	prefix := balancePrefix + normalizeSymbol(symbol) + "/"
	buf := make([]byte, len(prefix)+len(addr))
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}

func allowanceKey(symbol string, owner, spender [20]byte) []byte {
	prefix := allowancePrefix + normalizeSymbol(symbol) + "/"
	buf := make([]byte, len(prefix)+len(owner)+len(spender))
	copy(buf, prefix)
	copy(buf[len(prefix):], owner[:])
	copy(buf[len(prefix)+len(owner):], spender[:])
	return buf
}
