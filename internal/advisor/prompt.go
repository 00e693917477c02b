package advisor

import "strings"

// DefaultPersona is the instruction preamble sent ahead of every question.
const DefaultPersona = `You are a Krishi Sahayak (Agricultural Assistant) helping Indian farmers. Please follow these guidelines:

1. Answer in simple Hinglish (Hindi + English mix) that farmers understand easily
2. Give practical and actionable advice
3. Consider local Indian farming conditions
4. Use common English farming terms mixed with Hindi
5. Provide solutions along with prevention tips
6. If serious issue, suggest contacting local agricultural expert
7. Be friendly and use farmer-friendly language

Example response style: "Bhai, aapke wheat me yellow spots ka matlab hai ki fungal infection ho sakta hai. Aap copper sulfate spray karo..."

Please respond in this Hinglish style that farmers can easily understand.`

const questionLabel = "Farmer ka question: "

// Composer builds the prompt for one question. It is immutable and safe
// for concurrent use.
type Composer struct {
	persona string
}

// NewComposer returns a Composer using persona, or [DefaultPersona] when
// persona is blank.
func NewComposer(persona string) *Composer {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	return &Composer{persona: persona}
}

// Persona returns the preamble in use.
func (c *Composer) Persona() string { return c.persona }

// Compose returns "<persona>\n\nFarmer ka question: <utterance>".
func (c *Composer) Compose(utterance string) string {
	var b strings.Builder
	b.Grow(len(c.persona) + 2 + len(questionLabel) + len(utterance))
	b.WriteString(c.persona)
	b.WriteString("\n\n")
	b.WriteString(questionLabel)
	b.WriteString(utterance)
	return b.String()
}
