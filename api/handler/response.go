package handler

import (
	"net/http"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// statusFor 错误类别到 HTTP 状态码：请求本身有问题为 4xx，设备侧失败为 502
func statusFor(kind string) int {
	switch kind {
	case "":
		return http.StatusOK
	case "CONFIGURATION", "SECRET_REQUIRED":
		return http.StatusBadRequest
	case "INTERNAL":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	kind := clierr.Kind(err)
	return statusFor(kind), ErrorResponse{Code: kind, Message: err.Error()}
}
