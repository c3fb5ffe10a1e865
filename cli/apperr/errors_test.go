package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIO(t *testing.T) {
	t.Parallel()
	cause := errors.New("permission denied")
	err := IO("archive", cause)

	if !errors.Is(err, ErrIO) {
		t.Error("expected error to match ErrIO")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
	if err.Error() != "archive: permission denied" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestAPI(t *testing.T) {
	t.Parallel()
	err := API("/_controller/artifact", 400, "invalid artifact request")

	if !errors.Is(err, ErrAPI) {
		t.Error("expected error to match ErrAPI")
	}
	if errors.Is(err, ErrUpload) {
		t.Error("API error must not match ErrUpload")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Status != 400 {
		t.Errorf("Status = %d, want 400", appErr.Status)
	}
	if appErr.Message != "invalid artifact request" {
		t.Errorf("Message = %q", appErr.Message)
	}
}

func TestTransportKeepsCause(t *testing.T) {
	t.Parallel()
	err := Transport("/_controller/cloud_code", context.Canceled)

	if !errors.Is(err, ErrAPI) {
		t.Error("expected error to match ErrAPI")
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("expected error to match context.Canceled")
	}
}

func TestUploadStatus(t *testing.T) {
	t.Parallel()
	err := UploadStatus("upload", 403, "<Error>SignatureDoesNotMatch</Error>")

	if !errors.Is(err, ErrUpload) {
		t.Error("expected error to match ErrUpload")
	}
	want := "upload: fail to upload archive, HTTP 403: <Error>SignatureDoesNotMatch</Error>"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestProtocol(t *testing.T) {
	t.Parallel()
	err := Protocol("wait", "unexpected cloud code status: %q", "Unknown")

	if !Is(err, ErrProtocol) {
		t.Error("expected error to match ErrProtocol")
	}
	if err.Error() != `wait: unexpected cloud code status: "Unknown"` {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestDecodeWrappedByStage(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("artifact: %w", Decode("/_controller/artifact", errors.New("unexpected EOF")))

	if !errors.Is(err, ErrDecode) {
		t.Error("expected wrapped error to match ErrDecode")
	}
	if errors.Is(err, ErrAPI) {
		t.Error("decode failures are distinct from API failures")
	}
}
