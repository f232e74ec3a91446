package generate

import "errors"

// User-facing validation messages
const (
	MsgEmptyPrompt    = "Please enter a prompt"
	MsgNoPrompts      = "Please upload a file with prompts or add prompts manually"
	MsgImagesPerStyle = "Images per style must be between 1 and 4"
)

// ValidationError is returned before any network call when a submission is
// rejected locally.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a local validation failure
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
