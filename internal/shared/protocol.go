package shared

// Error codes carried in ErrorResponse.
const (
	CodeUnknownUser        = "UNKNOWN_USER"
	CodeMalformedSignature = "MALFORMED_SIGNATURE"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeBadJSON            = "BAD_JSON"
	CodeBadRequest         = "BAD_REQUEST"
	CodeTooLarge           = "TOO_LARGE"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RegisterIDRequest is the body of the admin key registration endpoint.
type RegisterIDRequest struct {
	PublicKey string `json:"public_key"` // base64
}
