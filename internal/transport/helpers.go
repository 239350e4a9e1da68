package transport

import (
	"errors"
	"io"
	"log"

	"github.com/imagemill/imagemill/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrProcessingFailed),
		errors.Is(err, model.ErrJobConflict):
		return 500
	case errors.Is(err, model.ErrJobNotFound):
		return 404
	case errors.Is(err, model.ErrUnauthenticated):
		return 401
	case errors.Is(err, model.ErrForbidden),
		errors.Is(err, model.ErrAdminOnly):
		return 403
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptyOps),
		errors.Is(err, model.ErrIncorrectOp),
		errors.Is(err, model.ErrIncorrectDimensions),
		errors.Is(err, model.ErrIncorrectSigma),
		errors.Is(err, model.ErrIncorrectSource),
		errors.Is(err, model.ErrBadState),
		errors.Is(err, model.ErrResultNotReady):
		return 400
	default:
		return 500
	}
}

// errorCode maps sentinels to the machine-readable code clients branch on.
func errorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrJobNotFound):
		return "not_found"
	case errors.Is(err, model.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, model.ErrForbidden),
		errors.Is(err, model.ErrAdminOnly):
		return "forbidden"
	case errors.Is(err, model.ErrBadState),
		errors.Is(err, model.ErrResultNotReady):
		return "bad_state"
	case errors.Is(err, model.ErrProcessingFailed):
		return "processing_failed"
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrJobConflict):
		return "internal"
	default:
		if errorCodeDefiner(err) == 400 {
			return "bad_request"
		}
		return "internal"
	}
}

func errorBody(code, message string) map[string]map[string]string {
	return map[string]map[string]string{
		"error": {"code": code, "message": message},
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
