package domain

import "strings"

// Token is a supported asset symbol.
type Token string

const (
	TokenETH  Token = "ETH"
	TokenCRO  Token = "CRO"
	TokenUSDC Token = "USDC"
)

// PrimaryToken is the native unit used when a request names no token.
const PrimaryToken = TokenETH

// TokenInfo describes how a token is denominated and transferred.
type TokenInfo struct {
	Symbol   Token `json:"symbol"`
	Decimals int32 `json:"decimals"`
	Native   bool  `json:"native"` // false = ERC-20 transfer
}

var tokenRegistry = map[Token]TokenInfo{
	TokenETH:  {Symbol: TokenETH, Decimals: 18, Native: true},
	TokenCRO:  {Symbol: TokenCRO, Decimals: 18, Native: true},
	TokenUSDC: {Symbol: TokenUSDC, Decimals: 6, Native: false},
}

// ParseToken resolves a case-insensitive symbol.
func ParseToken(s string) (Token, bool) {
	t := Token(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := tokenRegistry[t]
	return t, ok
}

// Info returns the token's denomination. Unknown tokens report ok=false.
func (t Token) Info() (TokenInfo, bool) {
	info, ok := tokenRegistry[t]
	return info, ok
}

// SupportedTokens lists every token in a stable order.
func SupportedTokens() []Token {
	return []Token{TokenETH, TokenCRO, TokenUSDC}
}
