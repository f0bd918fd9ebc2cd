package rpc

// Method is the closed set of wallet-protocol methods. Requests are
// resolved to a Method once at decode time; anything outside the set is an
// unsupported-method error, never a silent drop.
type Method string

const (
	MethodConnect             Method = "connect"
	MethodDisconnect          Method = "disconnect"
	MethodSignMessage         Method = "signMessage"
	MethodSignTransaction     Method = "signTransaction"
	MethodSignAllTransactions Method = "signAllTransactions"
	MethodSendTransaction     Method = "sendTransaction"
	MethodSendCalls           Method = "wallet_sendCalls"
	MethodPrepareCalls        Method = "wallet_prepareCalls"
	MethodGetCapabilities     Method = "wallet_getCapabilities"
	MethodGetAssets           Method = "wallet_getAssets"
	MethodGrantPermissions    Method = "wallet_grantPermissions"
	MethodRevokePermissions   Method = "wallet_revokePermissions"
	MethodGetPermissions      Method = "wallet_getPermissions"
)

var methods = map[Method]struct{}{
	MethodConnect:             {},
	MethodDisconnect:          {},
	MethodSignMessage:         {},
	MethodSignTransaction:     {},
	MethodSignAllTransactions: {},
	MethodSendTransaction:     {},
	MethodSendCalls:           {},
	MethodPrepareCalls:        {},
	MethodGetCapabilities:     {},
	MethodGetAssets:           {},
	MethodGrantPermissions:    {},
	MethodRevokePermissions:   {},
	MethodGetPermissions:      {},
}

// ParseMethod resolves a wire method name against the closed set.
func ParseMethod(name string) (Method, bool) {
	m := Method(name)
	_, ok := methods[m]
	return m, ok
}
