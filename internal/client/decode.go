package client

import (
	"encoding/json"
	"errors"

	"github.com/gkactivo/relaychat/internal/protocol"
)

var errEmptyPayload = errors.New("empty payload")

func decodeChatMessage(payload interface{}) (protocol.ChatMessage, error) {
	var msg protocol.ChatMessage
	if payload == nil {
		return msg, errEmptyPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}

func decodeHistoryPayload(payload interface{}) (protocol.HistoryPayload, error) {
	var history protocol.HistoryPayload
	if payload == nil {
		return history, errEmptyPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return history, err
	}
	if err := json.Unmarshal(data, &history); err != nil {
		return history, err
	}
	return history, nil
}

func decodePresencePayload(payload interface{}) (protocol.PresencePayload, error) {
	var presence protocol.PresencePayload
	if payload == nil {
		return presence, errEmptyPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return presence, err
	}
	if err := json.Unmarshal(data, &presence); err != nil {
		return presence, err
	}
	return presence, nil
}

func decodeTypingNotice(payload interface{}) (protocol.TypingNotice, error) {
	var notice protocol.TypingNotice
	if payload == nil {
		return notice, errEmptyPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return notice, err
	}
	if err := json.Unmarshal(data, &notice); err != nil {
		return notice, err
	}
	return notice, nil
}
