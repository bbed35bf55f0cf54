package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// DeleteReason classifies the outcome of a SafeDelete.
type DeleteReason string

const (
	ReasonDeleted          DeleteReason = "deleted"
	ReasonNotExists        DeleteReason = "not_exists"
	ReasonPermissionDenied DeleteReason = "permission_denied"
	ReasonFileInUse        DeleteReason = "file_in_use"
	ReasonUnknown          DeleteReason = "unknown"
)

// DeleteOutcome is what SafeDelete reports instead of an error. Err is
// informational and only set for unsuccessful outcomes.
type DeleteOutcome struct {
	Success bool
	Reason  DeleteReason
	Err     error
}

// SafeDelete removes path and classifies any failure instead of returning
// a raw error, so one bad item can never abort a sweep. A missing path is
// success: the file being gone is the desired end state.
func SafeDelete(path string) DeleteOutcome {
	err := os.Remove(path)
	switch {
	case err == nil:
		return DeleteOutcome{Success: true, Reason: ReasonDeleted}
	case errors.Is(err, fs.ErrNotExist):
		return DeleteOutcome{Success: true, Reason: ReasonNotExists}
	case errors.Is(err, fs.ErrPermission):
		return DeleteOutcome{Success: false, Reason: ReasonPermissionDenied, Err: err}
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.ETXTBSY):
		return DeleteOutcome{Success: false, Reason: ReasonFileInUse, Err: err}
	default:
		return DeleteOutcome{Success: false, Reason: ReasonUnknown, Err: err}
	}
}
