package protocol

import (
	"encoding/json"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
)

type Type int64

const (
	Join Type = iota + 1
	AckJoin
	SubscribePath
	ChangeNotify
	StatusNotify
	ErrorNotify
)

func (t Type) String() string {
	switch t {
	case Join:
		return "join"
	case AckJoin:
		return "ack-join"
	case SubscribePath:
		return "subscribe"
	case ChangeNotify:
		return "change"
	case StatusNotify:
		return "status"
	case ErrorNotify:
		return "error"
	}
	return "unknown"
}

/*
	A client joins (when the server requires it) and then subscribes:

	        client  Join ------------------------------> server
	        client  <------------------------------ AckJoin server
	        client  SubscribePath ---------------------> server
	        client  <------------------------- ChangeNotify server
	        client  <------------------------- StatusNotify server
	        client  <-------------------------- ErrorNotify server

	Every frame is one JSON document terminated by '\n'.
*/

// Data
// General communication frame in given protocol
type Data struct {
	Sec     uint64                 `json:"sc"`
	Time    time.Time              `json:"t"`
	Type    Type                   `json:"tp"`
	Heading map[string]interface{} `json:"h,omitempty"`
	Payload json.RawMessage        `json:"p,omitempty"`
}

type JoinPayload struct {
	Username string `json:"u"`
	Password string `json:"pw"`
}

type AckJoinPayload struct {
	Ok  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}

// SubscribePathPayload narrows the stream to paths below Path. An empty Path
// subscribes to everything.
type SubscribePathPayload struct {
	Path string `json:"p"`
	Id   string `json:"id"`
}

// ChangePayload is a change event plus what the server could learn about the
// file when it was reported.
type ChangePayload struct {
	Action  model.Action `json:"a"`
	Path    string       `json:"p"`
	Dir     bool         `json:"d,omitempty"`
	Size    int64        `json:"sz,omitempty"`
	ModTime time.Time    `json:"mt,omitempty"`
	MIME    string       `json:"mime,omitempty"`
}

type StatusPayload = model.StatusEvent

type ErrorPayload = model.ErrorEvent
