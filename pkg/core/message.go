package core

import "fmt"

// MessageKind classifies a resolution message.
type MessageKind string

// Message kinds.
const (
	KindPolicyOmission                  MessageKind = "policy_omission"
	KindDanglingRule                    MessageKind = "dangling_rule"
	KindDuplicateRule                   MessageKind = "duplicate_rule"
	KindInvalidAnnotation               MessageKind = "invalid_annotation"
	KindUnconvertibleDiscriminatorValue MessageKind = "unconvertible_discriminator_value"
	KindInvalidName                     MessageKind = "invalid_name"
	KindInformational                   MessageKind = "informational"
	KindStructuralInvariantViolation    MessageKind = "structural_invariant_violation"
)

// Message is one entry of the resolution log.
type Message struct {
	Severity Severity    `json:"severity"`
	Kind     MessageKind `json:"kind"`
	Subject  string      `json:"subject,omitempty"`
	Text     string      `json:"text"`
}

func (m Message) String() string {
	if m.Subject == "" {
		return fmt.Sprintf("%s: %s", m.Severity, m.Text)
	}
	return fmt.Sprintf("%s: %s: %s", m.Severity, m.Subject, m.Text)
}

// Log is the ordered message stream of a resolution run.
type Log struct {
	entries []Message
}

// Add appends a message.
func (l *Log) Add(m Message) { l.entries = append(l.entries, m) }

// Warn appends a warning.
func (l *Log) Warn(kind MessageKind, subject, format string, args ...any) {
	l.Add(Message{Severity: SeverityWarning, Kind: kind, Subject: subject, Text: fmt.Sprintf(format, args...)})
}

// Info appends an informational message.
func (l *Log) Info(kind MessageKind, subject, format string, args ...any) {
	l.Add(Message{Severity: SeverityInfo, Kind: kind, Subject: subject, Text: fmt.Sprintf(format, args...)})
}

// Error appends an error.
func (l *Log) Error(kind MessageKind, subject, format string, args ...any) {
	l.Add(Message{Severity: SeverityError, Kind: kind, Subject: subject, Text: fmt.Sprintf(format, args...)})
}

// Messages returns a copy of all messages in order.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int { return len(l.entries) }

// Errors returns the error messages.
func (l *Log) Errors() []Message { return l.filter(SeverityError) }

// Warnings returns the warning messages.
func (l *Log) Warnings() []Message { return l.filter(SeverityWarning) }

// Infos returns the informational messages.
func (l *Log) Infos() []Message { return l.filter(SeverityInfo) }

// OfKind returns the messages of the given kind.
func (l *Log) OfKind(kind MessageKind) []Message {
	var out []Message
	for _, m := range l.entries {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Reset drops all messages.
func (l *Log) Reset() { l.entries = nil }

func (l *Log) filter(sev Severity) []Message {
	var out []Message
	for _, m := range l.entries {
		if m.Severity == sev {
			out = append(out, m)
		}
	}
	return out
}
