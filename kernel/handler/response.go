package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/pkg/errors"
)

// Response is the proxy integration result understood by API Gateway.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,X-Api-Key",
		"Access-Control-Allow-Methods": "OPTIONS,GET,POST",
	}
}

// Payload is a response body under construction.
type Payload map[string]interface{}

func JSON(status int, payload interface{}) *Response {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"message":"Failed to encode response."}`)
	}
	return &Response{
		StatusCode: status,
		Headers:    DefaultHeaders(),
		Body:       string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))),
	}
}

func OK(payload interface{}) *Response {
	return JSON(http.StatusOK, payload)
}

// Failure reports err with the status its kind maps to. Client errors (400, 403, 405)
// carry the error's own message; everything else carries message plus the error text.
func Failure(err error, message string) *Response {
	status := fault.StatusCode(err)
	if status < http.StatusInternalServerError {
		return JSON(status, Payload{"message": clientMessage(err)})
	}
	return JSON(status, Payload{"message": message, "error": err.Error()})
}

func clientMessage(err error) string {
	var f *fault.Error
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}

// Decode unmarshals a response body, for callers that present results locally.
func (r *Response) Decode() (map[string]interface{}, error) {
	body := map[string]interface{}{}
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		return nil, errors.Wrap(err, "decode response body")
	}
	return body, nil
}
