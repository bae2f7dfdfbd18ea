package transport

import "github.com/fastygo/taskpilot/domain"

// MessageRequest is one free-text chat message.
type MessageRequest struct {
	Text string `json:"text"`
}

// TimeChoiceRequest answers a clarification question with an "HH:MM" time.
type TimeChoiceRequest struct {
	Time string `json:"time"`
}

// CallbackRequest carries the opaque data of a pressed chat button.
type CallbackRequest struct {
	Data string `json:"data"`
}

// ActionRequest is a pre-parsed action applied without the language model.
type ActionRequest = domain.Action
