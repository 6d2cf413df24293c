package model

// Business status codes carried in the APIResponse envelope. CodeOK marks
// success; CodeFailed marks a handled business failure with a message.
// The two token codes sit outside the 100-599 HTTP range on purpose so the
// error-mapping layer can tell them apart from transport statuses.
const (
	CodeOK     = 200
	CodeFailed = 0

	CodeInvalidToken     = 10001
	CodeExpiredSignature = 10002
)

// APIResponse is the uniform JSON envelope returned by every route.
type APIResponse struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// OK wraps a successful payload.
func OK(data interface{}) APIResponse {
	return APIResponse{Code: CodeOK, Data: data}
}

// Failed wraps a handled business failure.
func Failed(msg string) APIResponse {
	return APIResponse{Code: CodeFailed, Msg: msg}
}
