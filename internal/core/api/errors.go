package api

import (
	"context"
	"errors"

	"github.com/solatis/overseer/internal/ruleset"
	"github.com/solatis/overseer/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errStorage marks failures of the rule repository.
var errStorage = errors.New("rule storage unavailable")

var invalidArgument = []error{
	types.ErrEmptyRuleID,
	types.ErrDuplicateRuleID,
	types.ErrPathTooDeep,
	types.ErrTooManyInValues,
	types.ErrInvalidOperator,
	types.ErrNotAList,
	types.ErrInvalidPattern,
	types.ErrMissingEvaluator,
	errInvalidRequest,
}

// toStatus maps an error to a gRPC status: validation to
// INVALID_ARGUMENT, unknown rules to NOT_FOUND, storage to UNAVAILABLE,
// context expiry to DEADLINE_EXCEEDED or CANCELED, the rest to INTERNAL.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, types.ErrRuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errStorage):
		return status.Error(codes.Unavailable, err.Error())
	}

	var verr *ruleset.ValidationError
	if errors.As(err, &verr) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}
