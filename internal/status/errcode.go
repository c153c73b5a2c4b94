// internal/status/errcode.go
package status

import (
	"context"
	"errors"

	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/transport"
)

// Error codes written to SlotLastErrorCode.
const (
	ErrCodeNone             uint16 = 0
	ErrCodeGeneric          uint16 = 1
	ErrCodeTimeout          uint16 = 2
	ErrCodeLinkDown         uint16 = 3
	ErrCodeErrorReply       uint16 = 4
	ErrCodeIdentityMismatch uint16 = 5
	ErrCodePayloadMismatch  uint16 = 6
	ErrCodeUnknownRegister  uint16 = 7
)

// ErrorCode maps a poll error onto a status code.
// Errors exposing Code() uint16 pass their code through.
func ErrorCode(err error) uint16 {
	if err == nil {
		return ErrCodeNone
	}

	type coder interface{ Code() uint16 }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	switch {
	case errors.Is(err, harp.ErrIdentityMismatch):
		return ErrCodeIdentityMismatch
	case errors.Is(err, transport.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, transport.ErrClosed):
		return ErrCodeLinkDown
	case errors.Is(err, harp.ErrErrorReply):
		return ErrCodeErrorReply
	case errors.Is(err, harp.ErrPayloadTypeMismatch), errors.Is(err, harp.ErrPayloadLengthMismatch):
		return ErrCodePayloadMismatch
	case errors.Is(err, harp.ErrUnknownRegister):
		return ErrCodeUnknownRegister
	}
	return ErrCodeGeneric
}
