package model

import (
	"fmt"
	"strings"
)

// Group status codes reported by the batch processor.
const (
	StatusPreparing       = "P"
	StatusReady           = "R"
	StatusProcessing      = "O"
	StatusSuccess         = "X"
	StatusError           = "E"
	StatusCancelled       = "C"
	StatusValidationError = "V"
)

var statusTexts = map[string]string{
	StatusPreparing:       "Preparing",
	StatusReady:           "Ready",
	StatusProcessing:      "Processing",
	StatusSuccess:         "Success",
	StatusError:           "Error",
	StatusCancelled:       "Cancelled",
	StatusValidationError: "Validation Error",
}

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPreparing:       true,
		StatusReady:           true,
		StatusProcessing:      true,
		StatusSuccess:         true,
		StatusError:           true,
		StatusCancelled:       true,
		StatusValidationError: true,
	},
	StatusPreparing: {
		StatusPreparing:       true,
		StatusReady:           true,
		StatusProcessing:      true,
		StatusSuccess:         true,
		StatusError:           true,
		StatusCancelled:       true,
		StatusValidationError: true,
	},
	StatusReady: {
		StatusReady:           true,
		StatusProcessing:      true,
		StatusSuccess:         true,
		StatusError:           true,
		StatusCancelled:       true,
		StatusValidationError: true,
	},
	StatusProcessing: {
		StatusProcessing: true,
		StatusSuccess:    true,
		StatusError:      true,
		StatusCancelled:  true,
	},
	StatusValidationError: {
		StatusValidationError: true,
		StatusPreparing:       true, // resubmitted after correction
		StatusReady:           true,
		StatusProcessing:      true,
		StatusError:           true,
		StatusCancelled:       true,
	},
	// terminal codes only repeat themselves
	StatusSuccess:   {StatusSuccess: true},
	StatusError:     {StatusError: true},
	StatusCancelled: {StatusCancelled: true},
}

func NormalizeStatus(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func StatusText(code string) string {
	if t, ok := statusTexts[NormalizeStatus(code)]; ok {
		return t
	}
	return "Unknown"
}

func IsKnownStatus(code string) bool {
	_, ok := statusTexts[NormalizeStatus(code)]
	return ok
}

// IsTerminal reports whether the batch processor stops working on a group
// once it reaches code.
func IsTerminal(code string) bool {
	switch NormalizeStatus(code) {
	case StatusSuccess, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a group may move from one status code to
// another. Unknown codes are accepted in both directions so a backend that
// grows new codes is not silently ignored.
func CanTransition(from, to string) bool {
	from, to = NormalizeStatus(from), NormalizeStatus(to)
	if !IsKnownStatus(to) {
		return !IsTerminal(from)
	}
	next, ok := allowedTransitions[from]
	if !ok {
		return true
	}
	return next[to]
}

func CheckTransition(current *UploadStatus, next UploadStatus) error {
	if current == nil || current.GroupID != next.GroupID {
		return nil
	}
	if !CanTransition(current.Status, next.Status) {
		return fmt.Errorf("out-of-order status for group %s: %q -> %q", next.GroupID, current.Status, next.Status)
	}
	return nil
}
