package models

import "time"

// Message is a raw notification handed over by an SMS or email connector.
type Message struct {
	ID        string    `csv:"id" json:"id"`
	Sender    string    `csv:"sender" json:"sender"`
	Body      string    `csv:"body" json:"body"`
	Subject   string    `csv:"subject" json:"subject,omitempty"`
	Timestamp time.Time `csv:"timestamp" json:"timestamp"`
	Source    Source    `csv:"source" json:"source,omitempty"`
}

// SourceTag returns the message's source when it is a known one, otherwise it infers
// email when a subject is present and sms when not.
func (m Message) SourceTag() Source {
	if m.Source.Valid() {
		return m.Source
	}
	if m.Subject != "" {
		return SourceEmail
	}
	return SourceSMS
}
