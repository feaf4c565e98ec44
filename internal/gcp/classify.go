package gcp

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusClassifier recognises throttling by status code rather than message:
// gRPC ResourceExhausted from Firestore and HTTP 429 from Cloud Storage.
type StatusClassifier struct{}

// IsRetryable implements pipeline.Classifier.
func (StatusClassifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests
	}
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted
	}
	return false
}
