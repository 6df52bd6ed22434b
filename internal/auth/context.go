package auth

import (
	"context"
	"errors"
)

type ctxKey int

const ctxOperatorID ctxKey = iota

func WithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, ctxOperatorID, operatorID)
}

func OperatorID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxOperatorID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("operator_id not in context")
}
