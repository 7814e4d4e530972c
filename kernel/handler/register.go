package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/chunga-ict/vpnctl/kernel/peer"
	"github.com/michaelquigley/pfxlog"
)

type PeerRegistrar interface {
	Register(ctx context.Context, publicKey string) (*model.RegistrationResult, error)
}

type RegisterHandler struct {
	registrar PeerRegistrar
}

func NewRegisterHandler(registrar PeerRegistrar) *RegisterHandler {
	return &RegisterHandler{registrar: registrar}
}

func (h *RegisterHandler) Handle(ctx context.Context, event *Event) *Response {
	log := pfxlog.Logger()

	switch event.Method() {
	case http.MethodOptions:
		return OK(Payload{"message": "OK"})
	case http.MethodPost:
	default:
		return Failure(fault.New(fault.MethodNotAllowed, "Method Not Allowed"), "")
	}

	publicKey, err := decodePublicKey(event)
	if err != nil {
		return Failure(err, "")
	}
	if err := peer.ValidatePublicKey(publicKey); err != nil {
		return Failure(err, "")
	}
	if h.registrar == nil {
		return Failure(fault.New(fault.UpstreamError, "peer registration is not configured"), "Failed to register peer.")
	}

	result, err := h.registrar.Register(ctx, publicKey)
	if err != nil {
		if raw, found := peer.RawOutput(err); found && fault.Is(err, fault.UnexpectedOutput) {
			log.WithError(err).Errorf("unable to parse remote output: %s", raw)
			return JSON(http.StatusInternalServerError, Payload{
				"message":   "Unexpected response from registration command.",
				"error":     err.Error(),
				"rawOutput": raw,
			})
		}
		log.WithError(err).Error("registration failed")
		return Failure(err, "Failed to register peer.")
	}

	message := "Peer registered."
	if result.AlreadyExists {
		message = "Peer already registered."
	}
	return OK(Payload{
		"message":         message,
		"assignedIp":      result.AssignedIp,
		"presharedKey":    result.PresharedKey,
		"alreadyExists":   result.AlreadyExists,
		"publicKey":       result.PublicKey,
		"serverPublicKey": result.ServerPublicKey,
	})
}

func decodePublicKey(event *Event) (string, error) {
	body, err := event.DecodedBody()
	if err != nil {
		return "", fault.Wrap(fault.ValidationError, err, "Request body must be valid JSON.")
	}
	if strings.TrimSpace(body) == "" {
		body = "{}"
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return "", fault.Wrap(fault.ValidationError, err, "Request body must be valid JSON.")
	}
	switch key := payload["publicKey"].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(key), nil
	default:
		return "", fault.New(fault.ValidationError, "publicKey appears invalid.")
	}
}
