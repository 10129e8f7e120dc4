package cloud

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"mercator-hq/prognos/pkg/prediction"
)

// Target identifies what a failed remote call was addressing.
type Target struct {
	// Service names the remote service in ServiceConnectionError
	Service string

	// ResourceType and ResourceID fill ResourceNotFoundError
	ResourceType string
	ResourceID   string

	// ModelType fills PredictionError
	ModelType string
}

// Translate maps a remote failure onto the prediction fault taxonomy.
// Errors that already belong to the taxonomy are returned unchanged.
//
// Error codes take precedence over status codes:
//
//	not found         (404)      -> ResourceNotFoundError
//	validation        (400, 422) -> ValidationError
//	model execution   (424)      -> PredictionError
//	anything else                -> ServiceConnectionError
//
// Both RemoteError and azcore.ResponseError are understood.
func Translate(err error, t Target) error {
	if err == nil || prediction.IsFault(err) {
		return err
	}

	var (
		remoteErr *RemoteError
		azureErr  *azcore.ResponseError
		code      string
		status    int
		message   string
	)
	switch {
	case errors.As(err, &remoteErr):
		code, status, message = remoteErr.Code, remoteErr.StatusCode, remoteErr.Message
	case errors.As(err, &azureErr):
		code, status, message = azureErr.ErrorCode, azureErr.StatusCode, azureErr.ErrorCode
	default:
		return &prediction.ServiceConnectionError{Service: t.Service, Message: "request failed", Cause: err}
	}

	switch classify(code, status) {
	case classNotFound:
		return &prediction.ResourceNotFoundError{ResourceType: t.ResourceType, ResourceID: t.ResourceID, Cause: err}
	case classValidation:
		return &prediction.ValidationError{Field: "request", Message: message}
	case classModel:
		return &prediction.PredictionError{ModelType: t.ModelType, Message: "model execution failed", Cause: err}
	default:
		return &prediction.ServiceConnectionError{Service: t.Service, Message: "remote call failed", Cause: err}
	}
}

type class int

const (
	classOther class = iota
	classNotFound
	classValidation
	classModel
)

// Error codes are compared case-insensitively with separators removed.
var codeClasses = map[string]class{
	"notfound":                  classNotFound,
	"resourcenotfound":          classNotFound,
	"resourcenotfoundexception": classNotFound,
	"endpointnotfound":          classNotFound,
	"functionnotfound":          classNotFound,
	"blobnotfound":              classNotFound,
	"validation":                classValidation,
	"validationerror":           classValidation,
	"validationexception":       classValidation,
	"invalidrequest":            classValidation,
	"invalidinput":              classValidation,
	"modelerror":                classModel,
	"modelerrorexception":       classModel,
	"modelexecutionerror":       classModel,
}

func classify(code string, status int) class {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", ".", "").Replace(code))
	if c, ok := codeClasses[normalized]; ok {
		return c
	}

	switch status {
	case http.StatusNotFound:
		return classNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return classValidation
	case http.StatusFailedDependency:
		return classModel
	default:
		return classOther
	}
}
