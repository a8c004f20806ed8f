package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// Error type names reported in ErrorBody.ErrorType.
const (
	errTypeNotFound       = "NotFoundError"
	errTypeValidation     = "ValidationError"
	errTypeCollision      = "StorageCollisionError"
	errTypeReconstruction = "ReconstructionError"
	errTypeCollaborator   = "CollaboratorError"
	errTypePredefined     = "PredefinedMediaError"
	errTypeCapacity       = "CapacityError"
	errTypeCancelled      = "CancelledError"
	errTypeUnknownTool    = "UnknownToolError"
	errTypeInternal       = "InternalError"
)

// errorBody renders err as the structured body every tool returns on failure.
func errorBody(err error) ErrorBody {
	body := ErrorBody{Success: false, ErrorType: errTypeInternal, Message: err.Error()}

	var (
		notFound       *types.NotFoundError
		validation     *types.ValidationError
		collision      *types.StorageCollisionError
		reconstruction *types.ReconstructionError
		collaborator   *types.CollaboratorError
		predefined     *types.PredefinedMediaError
		capacity       *types.CapacityError
		invalid        validator.ValidationErrors
	)
	switch {
	case errors.As(err, &notFound):
		body.ErrorType = errTypeNotFound
		body.Details = map[string]interface{}{"kind": notFound.Kind, "id": notFound.ID}
		body.AvailableIDs = notFound.Known
	case errors.As(err, &invalid):
		body.ErrorType = errTypeValidation
		fields := make([]map[string]string, 0, len(invalid))
		msgs := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			fields = append(fields, map[string]string{"field": fe.Field(), "rule": ruleOf(fe)})
			msgs = append(msgs, fmt.Sprintf("%s fails %s", fe.Field(), ruleOf(fe)))
		}
		body.Message = "invalid arguments: " + strings.Join(msgs, "; ")
		body.Details = map[string]interface{}{"fields": fields}
	case errors.As(err, &validation):
		body.ErrorType = errTypeValidation
		body.Details = map[string]interface{}{"field": validation.Field}
	case errors.As(err, &collision):
		body.ErrorType = errTypeCollision
		body.Details = map[string]interface{}{"kind": collision.Kind, "attempts": collision.Attempts}
	case errors.As(err, &reconstruction):
		body.ErrorType = errTypeReconstruction
		body.Details = map[string]interface{}{"stage": reconstruction.Stage}
	case errors.As(err, &collaborator):
		body.ErrorType = errTypeCollaborator
		body.Details = map[string]interface{}{"collaborator": collaborator.Collaborator, "operation": collaborator.Op}
	case errors.As(err, &predefined):
		body.ErrorType = errTypePredefined
		body.Details = map[string]interface{}{"media_id": predefined.ID}
	case errors.As(err, &capacity):
		body.ErrorType = errTypeCapacity
		body.Details = map[string]interface{}{"kind": capacity.Kind, "limit": capacity.Limit}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		body.ErrorType = errTypeCancelled
	}
	return body
}

// errorCode picks the JSON-RPC error code for a failed native method call.
func errorCode(err error) int {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) || errors.Is(err, types.ErrValidation) {
		return ErrCodeInvalidParams
	}
	return ErrCodeServerError
}

func ruleOf(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
