package handler

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/oliveagle/jsonpath"
	"github.com/pkg/errors"
)

// Event is an API Gateway (REST or HTTP API) proxy request or a scheduled invocation.
// The decoded document is kept so request-context fields can be looked up by path.
type Event struct {
	HttpMethod      string `json:"httpMethod"`
	Body            string `json:"body"`
	IsBase64Encoded bool   `json:"isBase64Encoded"`
	Trigger         string `json:"trigger"`
	Source          string `json:"source"`

	doc interface{}
}

// RequestMeta identifies the caller for notifications. Absent fields stay nil.
type RequestMeta struct {
	SourceIp  *string `json:"sourceIp"`
	UserAgent *string `json:"userAgent"`
	RequestId *string `json:"requestId"`
}

func ParseEvent(data []byte) (*Event, error) {
	event := &Event{}
	if len(data) == 0 || string(data) == "null" {
		event.doc = map[string]interface{}{}
		return event, nil
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	if err := json.Unmarshal(data, &event.doc); err != nil {
		return nil, errors.Wrap(err, "decode event document")
	}
	return event, nil
}

// NewEvent builds a REST-style event, as delivered by the local HTTP and CLI front ends.
func NewEvent(method, body string, meta RequestMeta) *Event {
	identity := map[string]interface{}{}
	if meta.SourceIp != nil {
		identity["sourceIp"] = *meta.SourceIp
	}
	if meta.UserAgent != nil {
		identity["userAgent"] = *meta.UserAgent
	}
	requestContext := map[string]interface{}{"identity": identity}
	if meta.RequestId != nil {
		requestContext["requestId"] = *meta.RequestId
	}
	return &Event{
		HttpMethod: method,
		Body:       body,
		doc: map[string]interface{}{
			"httpMethod":     method,
			"requestContext": requestContext,
		},
	}
}

// Method is the request method, falling back to the HTTP API v2 location.
func (e *Event) Method() string {
	if e.HttpMethod != "" {
		return strings.ToUpper(e.HttpMethod)
	}
	if method := e.lookup("$.requestContext.http.method"); method != nil {
		return strings.ToUpper(*method)
	}
	return ""
}

func (e *Event) DecodedBody() (string, error) {
	if !e.IsBase64Encoded {
		return e.Body, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(e.Body)
	if err != nil {
		return "", errors.Wrap(err, "decode base64 body")
	}
	return string(decoded), nil
}

// TriggerLabel names what invoked the event: the explicit trigger, else the scheduler
// source, else "api".
func (e *Event) TriggerLabel() string {
	if e.Trigger != "" {
		return e.Trigger
	}
	if e.Source != "" {
		return e.Source
	}
	return "api"
}

func (e *Event) Meta() RequestMeta {
	return RequestMeta{
		SourceIp:  e.lookup("$.requestContext.identity.sourceIp", "$.requestContext.http.sourceIp"),
		UserAgent: e.lookup("$.requestContext.identity.userAgent", "$.requestContext.http.userAgent"),
		RequestId: e.lookup("$.requestContext.requestId"),
	}
}

// lookup returns the first non-empty string found at any of paths.
func (e *Event) lookup(paths ...string) *string {
	if e.doc == nil {
		return nil
	}
	for _, path := range paths {
		value, err := jsonpath.JsonPathLookup(e.doc, path)
		if err != nil {
			continue
		}
		if s, ok := value.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

// MetaOf builds request metadata from plain values; empty values become nil.
func MetaOf(sourceIp, userAgent, requestId string) RequestMeta {
	return RequestMeta{SourceIp: stringPtr(sourceIp), UserAgent: stringPtr(userAgent), RequestId: stringPtr(requestId)}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
