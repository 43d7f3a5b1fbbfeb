package chat

import "errors"

var (
	// ErrEmptyContent rejects a send whose content is blank after trimming.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrSendInFlight rejects a send while another send is unresolved.
	ErrSendInFlight = errors.New("a message is already being sent")

	// ErrLoadInFlight rejects a send while a conversation is loading.
	ErrLoadInFlight = errors.New("a conversation is loading")

	// ErrEmptyTitle rejects a rename to a blank title.
	ErrEmptyTitle = errors.New("conversation title is empty")

	// ErrNoAgent is returned when the controller has no agent context.
	ErrNoAgent = errors.New("no agent selected")

	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("session closed")

	// ErrSuperseded marks a result discarded because a newer operation or a
	// navigation replaced the state it targeted.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrFetchFailed wraps failures loading a conversation or the conversation list.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrSendFailed wraps failures of the send-message call.
	ErrSendFailed = errors.New("send failed")

	// ErrUpdateFailed wraps failures creating, renaming or deleting a conversation.
	ErrUpdateFailed = errors.New("update failed")
)

// IsValidation reports whether err was a synchronous rejection that made no
// network call and changed no state.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrSendInFlight) ||
		errors.Is(err, ErrLoadInFlight) ||
		errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrNoAgent)
}
