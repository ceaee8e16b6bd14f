package handle

import (
	"encoding/json"
	"fmt"
)

// Handle.net REST API responseCode values.
var responseCodeMessages = map[int]string{
	1:   "Success",
	2:   "An unexpected error on the server has occurred",
	100: "Handle not found",
	101: "Handle already exists",
	102: "Invalid handle",
	200: "Values not found",
	201: "Value already exists",
	202: "Invalid value",
	301: "Server not responsible for handle",
	402: "Authentication needed",
}

const responseCodeSuccess = 1

// ResponseCodeMessage returns the documented meaning of a responseCode.
func ResponseCodeMessage(code int) (string, bool) {
	message, ok := responseCodeMessages[code]
	return message, ok
}

type responseEnvelope struct {
	ResponseCode *int   `json:"responseCode"`
	Handle       string `json:"handle"`
	Message      string `json:"message"`
}

func decodeEnvelope(body []byte) (responseEnvelope, bool) {
	var envelope responseEnvelope
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil {
		return responseEnvelope{}, false
	}
	return envelope, true
}

// describe appends the responseCode meaning when the body carries a mapped
// code. Unmapped codes are left out of the message.
func describe(message string, envelope responseEnvelope, ok bool, metadata map[string]any) string {
	if !ok || envelope.ResponseCode == nil {
		return message
	}
	code := *envelope.ResponseCode
	metadata["handle_response_code"] = code
	meaning, mapped := ResponseCodeMessage(code)
	if !mapped {
		return message
	}
	metadata["handle_response_message"] = meaning
	return fmt.Sprintf("%s: %s (responseCode %d)", message, meaning, code)
}
