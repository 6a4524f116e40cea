package token

// 測試時可覆蓋, middleware / client 都透過這些變數呼叫
var (
	ParseJWTFunc   = ParseJWT
	PeekClaimsFunc = PeekClaims
)
