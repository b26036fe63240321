// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package coordinator implements the Session Coordinator: one WebSocket
// connection's state machine from admission through teardown.
package coordinator

import "encoding/json"

// Request is the inbound text-frame envelope.
type Request struct {
	QueryType string `json:"query_type"`
}

const (
	QueryOpen   = "open"
	QueryClose  = "close"
	QueryResume = "resume"
)

// Reply is the outbound text-frame envelope. Message carries either a
// string or a nested object depending on Type.
type Reply struct {
	Message interface{} `json:"message"`
	Type    string      `json:"type"`
}

const (
	ReplyTypeMessage = "message"
	ReplyTypeError   = "error"
	ReplyTypeUpdate  = "update"
	ReplyTypeSuccess = "success"
)

// UDCEU is the wire code for "user disconnected — exceeded usage".
const UDCEU = "UDC-EU"

const errUnknownQueryType = "Unknown query_type, expected one of open, close, resume."
const errInvalidPublicKey = "Invalid public key, expected 44 characters."

func errorReply(message string) Reply {
	return Reply{Message: message, Type: ReplyTypeError}
}

// OpenSuccess is the nested message object sent on a successful open.
type OpenSuccess struct {
	ServerPublicKey string `json:"server_public_key"`
	Endpoint        string `json:"endpoint"`
	Subdomain       string `json:"subdomain"`
}

// UpdateUsage is the nested message object pushed on every meter tick for
// a client under its cap.
type UpdateUsage struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

func marshalReply(r Reply) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRequest(frame []byte, req *Request) error {
	return json.Unmarshal(frame, req)
}

// MarshalUpdateFrame builds the usage-update frame the meter loop pushes
// on every tick a client stays under its cap.
func MarshalUpdateFrame(up, down int64) ([]byte, error) {
	return marshalReply(Reply{
		Message: UpdateUsage{Up: up, Down: down},
		Type:    ReplyTypeUpdate,
	})
}

// MarshalUDCEUFrame builds the forced-disconnect frame the meter loop
// pushes to a still-connected client before tearing it down.
func MarshalUDCEUFrame() ([]byte, error) {
	return marshalReply(Reply{Message: UDCEU, Type: ReplyTypeError})
}
