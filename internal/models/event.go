// Package models defines the shared data types exchanged between the
// gateway, dispatcher, and rule engine.
package models

// Field is one named text pair attached to an event, in platform order.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attachment references a file attached to an event.
type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Event is one inbound message-like unit from the monitored source.
//
// ID is the platform-assigned ordering identifier (the JetStream stream
// sequence). IDs are totally ordered and monotonically assigned upstream;
// the core never generates or reorders them. All payload fields are
// optional and default to their zero value when absent.
type Event struct {
	ID          uint64       `json:"id"`
	Channel     string       `json:"channel"`
	Author      string       `json:"author"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Fields      []Field      `json:"fields,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Body        string       `json:"body,omitempty"`
}
