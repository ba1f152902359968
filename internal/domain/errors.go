package domain

// Error codes attached to CommandError values. The dispatcher maps these to
// wire envelopes; everything else just wraps and returns them.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnknownAction   = "UNKNOWN_ACTION"
	CodeDuplicate       = "DUPLICATE_SUBSCRIPTION"
	CodeNotFound        = "NOT_FOUND"
	CodeNoSubscriptions = "NO_SUBSCRIPTIONS"
	CodeFeedFailure     = "FEED_FAILURE"
	CodePlayerFailure   = "PLAYER_FAILURE"
)

// CommandError is the single error shape command handlers return for
// recoverable failures. Details is optional extra context for the client.
type CommandError struct {
	Code    string
	Message string
	Details string
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

func NewCommandError(code, message string) *CommandError {
	return &CommandError{Code: code, Message: message}
}

func (e *CommandError) WithDetails(details string) *CommandError {
	return &CommandError{Code: e.Code, Message: e.Message, Details: details}
}
