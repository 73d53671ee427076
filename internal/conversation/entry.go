package conversation

// Entry is one item of a user's conversation history. Histories mix two
// shapes: bare message strings from the logging path and role-tagged records
// from the reply path. An Entry with an empty Role is a plain entry.
type Entry struct {
	Role    string
	Content string
}

// Plain wraps a bare message string.
func Plain(text string) Entry {
	return Entry{Content: text}
}

// Structured creates a role-tagged entry.
func Structured(role, content string) Entry {
	return Entry{Role: role, Content: content}
}

// IsPlain reports whether the entry predates role tagging.
func (e Entry) IsPlain() bool {
	return e.Role == ""
}

// Text returns the entry's content regardless of shape. Structured entries
// with no content contribute an empty string.
func (e Entry) Text() string {
	return e.Content
}

// Normalize returns the entry as a (role, content) pair, treating plain
// entries as user messages. Used by both the summarizer and the responder so
// the two paths never diverge on legacy entries.
func (e Entry) Normalize() (role, content string) {
	if e.IsPlain() {
		return "user", e.Content
	}
	return e.Role, e.Content
}
