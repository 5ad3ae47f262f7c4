package httputil

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// APIResponse is the envelope of every JSON API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteJSON writes resp with the given status.
// A payload that cannot be marshaled becomes a 500 error envelope.
func WriteJSON(ctx *fasthttp.RequestCtx, resp APIResponse, statusCode int) {
	body, err := json.Marshal(resp)
	if err != nil {
		body, _ = json.Marshal(APIResponse{Message: "failed to encode response", Code: "internal"})
		statusCode = fasthttp.StatusInternalServerError
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// JSONError writes a failure envelope with a machine-readable code
func JSONError(ctx *fasthttp.RequestCtx, code, message string, statusCode int) {
	WriteJSON(ctx, APIResponse{Message: message, Code: code}, statusCode)
}

// JSONSuccess writes a success envelope with no data
func JSONSuccess(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	WriteJSON(ctx, APIResponse{Success: true, Message: message}, statusCode)
}

// JSONData writes a success envelope carrying data
func JSONData(ctx *fasthttp.RequestCtx, data interface{}, statusCode int) {
	WriteJSON(ctx, APIResponse{Success: true, Data: data}, statusCode)
}
