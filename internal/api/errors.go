package api

import (
	"errors"
	"fmt"
	"net/http"

	"modsync/internal/model"
	"modsync/internal/modsync"
	"modsync/internal/staging"
)

// Machine-readable error codes.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeStaleVersion      = "STALE_VERSION"
	CodeNoChanges         = "NO_CHANGES"
	CodeIntegrityMismatch = "INTEGRITY_MISMATCH"
	CodeStaleUpload       = "STALE_UPLOAD"
	CodeBadRequest        = "BAD_REQUEST"
	CodeTooLarge          = "TOO_LARGE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrUnauthorized is returned by the client when the server rejects its key.
var ErrUnauthorized = errors.New("unauthorized")

// ErrTooLarge is returned by the client when the server rejects a body as too large.
var ErrTooLarge = errors.New("request too large")

// ErrorResponse is the body of every non-2xx response. Fields past Message
// are only set for the codes that carry them.
type ErrorResponse struct {
	Code            string          `json:"code"`
	Message         string          `json:"message"`
	ModpackID       string          `json:"modpack_id,omitempty"`
	CurrentVersion  *int64          `json:"current_version,omitempty"`
	ExpectedVersion *int64          `json:"expected_version,omitempty"`
	Path            string          `json:"path,omitempty"`
	Declared        string          `json:"declared,omitempty"`
	Computed        string          `json:"computed,omitempty"`
	Hash            string          `json:"hash,omitempty"`
	State           model.FileState `json:"state,omitempty"`
}

// ErrorFor maps err to an HTTP status and body. Unrecognized errors become a
// 500 without leaking their text.
func ErrorFor(err error) (int, ErrorResponse) {
	var (
		stale     *modsync.StaleVersionError
		noChanges *modsync.NoChangesError
		mismatch  *modsync.IntegrityMismatchError
		staleUp   *modsync.StaleUploadError
		tooLarge  *http.MaxBytesError
	)

	switch {
	case errors.As(err, &stale):
		return http.StatusConflict, ErrorResponse{
			Code:            CodeStaleVersion,
			Message:         err.Error(),
			ModpackID:       stale.ModpackID,
			CurrentVersion:  &stale.Current,
			ExpectedVersion: &stale.Expected,
		}
	case errors.As(err, &noChanges):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Code:           CodeNoChanges,
			Message:        err.Error(),
			ModpackID:      noChanges.ModpackID,
			CurrentVersion: &noChanges.Version,
		}
	case errors.As(err, &mismatch):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Code:     CodeIntegrityMismatch,
			Message:  err.Error(),
			Path:     mismatch.Path,
			Declared: mismatch.Declared,
			Computed: mismatch.Computed,
		}
	case errors.As(err, &staleUp):
		return http.StatusConflict, ErrorResponse{
			Code:    CodeStaleUpload,
			Message: err.Error(),
			Path:    staleUp.Path,
			Hash:    staleUp.Hash,
			State:   staleUp.State,
		}
	case errors.As(err, &tooLarge), errors.Is(err, staging.ErrFull):
		return http.StatusRequestEntityTooLarge, ErrorResponse{Code: CodeTooLarge, Message: err.Error()}
	case errors.Is(err, modsync.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, modsync.ErrAlreadyExists):
		return http.StatusConflict, ErrorResponse{Code: CodeAlreadyExists, Message: err.Error()}
	case errors.Is(err, modsync.ErrInvalidManifest), errors.Is(err, modsync.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorResponse{Code: CodeBadRequest, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Message: "internal server error"}
	}
}

// Err turns an error body back into the domain error the server started from,
// so callers can use errors.Is and errors.As across the wire.
func (e ErrorResponse) Err() error {
	switch e.Code {
	case CodeStaleVersion:
		return &modsync.StaleVersionError{ModpackID: e.ModpackID, Expected: deref(e.ExpectedVersion), Current: deref(e.CurrentVersion)}
	case CodeNoChanges:
		return &modsync.NoChangesError{ModpackID: e.ModpackID, Version: deref(e.CurrentVersion)}
	case CodeIntegrityMismatch:
		return &modsync.IntegrityMismatchError{Path: e.Path, Declared: e.Declared, Computed: e.Computed}
	case CodeStaleUpload:
		return &modsync.StaleUploadError{Path: e.Path, Hash: e.Hash, State: e.State}
	case CodeNotFound:
		return fmt.Errorf("%s: %w", e.Message, modsync.ErrNotFound)
	case CodeAlreadyExists:
		return fmt.Errorf("%s: %w", e.Message, modsync.ErrAlreadyExists)
	case CodeBadRequest:
		return fmt.Errorf("%s: %w", e.Message, modsync.ErrInvalidArgument)
	case CodeTooLarge:
		return fmt.Errorf("%s: %w", e.Message, ErrTooLarge)
	case CodeUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("server error: %s", e.Message)
	}
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
