package common

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
	"github.com/leapstack-labs/dbbrowser/internal/registry"
	"github.com/leapstack-labs/dbbrowser/internal/transfer"
)

// MaxUploadSize bounds database, CSV and script uploads.
const MaxUploadSize = 256 << 20

// ErrNoFile is returned when a multipart upload has no "file" part.
var ErrNoFile = errors.New("no file uploaded")

// StatusCode maps a console error to the HTTP status of a download or
// upload response.
func StatusCode(err error) int {
	var execErr *gateway.ExecError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, console.ErrNoDatabase), errors.Is(err, console.ErrNoTable):
		return http.StatusConflict
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, browser.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrExists):
		return http.StatusConflict
	case errors.Is(err, registry.ErrCapacity):
		return http.StatusInsufficientStorage
	case errors.Is(err, browser.ErrRowNotFound), errors.Is(err, browser.ErrAmbiguousRow),
		errors.Is(err, browser.ErrNoPrimaryKey):
		return http.StatusConflict
	case errors.Is(err, registry.ErrMalformedImage), errors.Is(err, registry.ErrInvalidName),
		errors.Is(err, transfer.ErrEmptyCSV), errors.Is(err, transfer.ErrRowWidth),
		errors.Is(err, transfer.ErrUnknownColumn), errors.Is(err, browser.ErrInvalidFilter),
		errors.Is(err, browser.ErrInvalidPage), errors.Is(err, browser.ErrInvalidPageSize),
		errors.Is(err, browser.ErrRowIndex), errors.Is(err, console.ErrEmptyInput),
		errors.Is(err, gateway.ErrEmptySQL), errors.Is(err, ErrNoFile):
		return http.StatusBadRequest
	case errors.As(err, &execErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage renders err for display in the console.
func ErrorMessage(err error) string {
	var execErr *gateway.ExecError
	if errors.As(err, &execErr) {
		return fmt.Sprintf("Statement %d failed: %v", execErr.Index+1, execErr.Err)
	}
	return err.Error()
}

// WriteDownload sends d as an attachment.
func WriteDownload(w http.ResponseWriter, d console.Download) {
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Data)
}

// ReadUpload reads the "file" part of a multipart form.
func ReadUpload(w http.ResponseWriter, r *http.Request) (name string, data []byte, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, ErrNoFile
		}
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}
