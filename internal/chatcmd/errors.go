package chatcmd

// UserError represents an error that should be shown to the player as a
// system notice. These are not system failures, just invalid input or usage.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// NewUserError creates a user-facing error.
func NewUserError(msg string) *UserError {
	return &UserError{Message: msg}
}

// userErrorf expands a notice template into a UserError. A broken template
// falls back to the raw template text.
func userErrorf(tmpl string, data any) *UserError {
	msg, err := ExpandTemplate(tmpl, data)
	if err != nil {
		return NewUserError(tmpl)
	}
	return NewUserError(msg)
}

// UnknownChannel is the notice for chat sent to a channel that was never
// created.
func UnknownChannel(channel string) *UserError {
	return userErrorf(tmplUnknownChannel, noticeData{Channel: channel})
}
