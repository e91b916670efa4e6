package validation

// Error is returned for input that fails validation. Its message is safe to
// show to the user.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func invalid(msg string) error {
	return &Error{msg: msg}
}
