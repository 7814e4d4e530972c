package handler

import (
	"net/http"
	"testing"

	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/stretchr/testify/assert"
)

func TestJSON_NoHtmlEscaping(t *testing.T) {
	resp := OK(Payload{"message": "a < b & c", "name": "Zoë"})
	assert.Equal(t, `{"message":"a < b & c","name":"Zoë"}`, resp.Body)
	assert.Equal(t, DefaultHeaders(), resp.Headers)
}

func TestJSON_Unencodable(t *testing.T) {
	resp := OK(Payload{"bad": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Body, "Failed to encode response.")
}

func TestFailure(t *testing.T) {
	resp := Failure(fault.New(fault.PolicyViolation, "VPN start is disabled"), "ignored")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, `{"message":"VPN start is disabled"}`, resp.Body)

	resp = Failure(fault.New(fault.Timeout, "gave up"), "Failed to register peer.")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, `{"error":"gave up","message":"Failed to register peer."}`, resp.Body)
}
