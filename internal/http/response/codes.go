package response

const (
	CodeOK              = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeInternal        = 500
	CodeBadGateway      = 502
)

// HTTPStatus 业务错误码对应的 HTTP 状态码，未知编码返回 500
func HTTPStatus(code int) int {
	switch code {
	case CodeOK:
		return 200
	case CodeBadRequest, CodeUnauthorized, CodeNotFound, CodeConflict, CodeTooManyRequests, CodeBadGateway:
		return code
	default:
		return CodeInternal
	}
}
