package errprocess

import (
	"fmt"

	"campus_chat/pkg/logger"

	"go.uber.org/zap"
)

// Wrap log cause and return kind wrapping it, errors.Is works for both
func Wrap(kind error, cause error, fields ...zap.Field) error {
	if cause == nil {
		return kind
	}
	logger.Log.Error(kind.Error(), append(fields, zap.Error(cause))...)
	return fmt.Errorf("%w: %w", kind, cause)
}
