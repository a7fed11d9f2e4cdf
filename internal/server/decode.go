package server

import (
	"encoding/json"
	"errors"

	"github.com/gkactivo/relaychat/internal/protocol"
)

var errInvalidPayload = errors.New("invalid payload")

func decodeJoinRequest(payload interface{}) (protocol.JoinRequest, error) {
	var req protocol.JoinRequest
	if payload == nil {
		return req, errInvalidPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	return req, nil
}

func decodeMessageSend(payload interface{}) (protocol.MessageSend, error) {
	var req protocol.MessageSend
	if payload == nil {
		return req, errInvalidPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	return req, nil
}

func decodeTypingRequest(payload interface{}) (protocol.TypingRequest, error) {
	var req protocol.TypingRequest
	if payload == nil {
		return req, errInvalidPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	return req, nil
}
