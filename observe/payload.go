package observe

import "github.com/observation-tools/observation-tools/model"

// Payloader converts a value into an observation payload at the call
// site. Implement it on your own types to control how they are
// serialized; the builder's JSON and Text helpers cover the common cases.
type Payloader interface {
	ToPayload() model.Payload
}

// Markdown is a payload wrapper for markdown content, uploaded with the
// text/markdown MIME type.
type Markdown string

// ToPayload implements Payloader.
func (m Markdown) ToPayload() model.Payload {
	return model.BytesPayload([]byte(m), model.MimeMarkdown)
}

// Text is a Payloader for plain strings.
type Text string

// ToPayload implements Payloader.
func (t Text) ToPayload() model.Payload {
	return model.TextPayload(string(t))
}
