package pipeline

import "strings"

// DefaultThrottleFragment appears in the message of every gRPC error the
// document store returns when a request is rejected for exceeding quota
// ("rpc error: code = ResourceExhausted desc = ...").
const DefaultThrottleFragment = "ResourceExhausted"

// Classifier decides whether a failure is transient throttling that the run
// should back off from and retry.
type Classifier interface {
	IsRetryable(err error) bool
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(err error) bool

// IsRetryable implements Classifier.
func (f ClassifierFunc) IsRetryable(err error) bool { return f(err) }

// MessageClassifier matches a fragment anywhere in the error message, ignoring case.
type MessageClassifier struct {
	Fragment string
}

// IsRetryable implements Classifier.
func (c MessageClassifier) IsRetryable(err error) bool {
	if err == nil || c.Fragment == "" {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), strings.ToLower(c.Fragment))
}

// AnyOf reports an error as retryable when any of the classifiers does.
func AnyOf(classifiers ...Classifier) Classifier {
	return ClassifierFunc(func(err error) bool {
		for _, c := range classifiers {
			if c != nil && c.IsRetryable(err) {
				return true
			}
		}
		return false
	})
}
