package service

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PulpFictionApps/veterinaria/internal/scheduling"
)

// toStatus переводит ошибку ядра в gRPC-статус по её классу.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", op, err)
	case errors.Is(err, scheduling.ErrAlreadyBooked):
		return status.Error(codes.AlreadyExists, err.Error())
	}

	switch scheduling.KindOf(err) {
	case scheduling.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case scheduling.KindConflict:
		return status.Error(codes.Aborted, err.Error())
	case scheduling.KindAuthorization:
		return status.Error(codes.PermissionDenied, err.Error())
	case scheduling.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
