package apperr_test

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"lauschr/internal/apperr"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := apperr.Wrap(apperr.ErrStorageUnavailable, "docstore", "write", "feeds/abc", base)
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"docstore", "write", "feeds/abc", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := apperr.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "unspecified failure") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{apperr.Validation("feeds", "create", "title required"), "validation"},
		{apperr.NotFound("feeds", "get", "feed_x"), "not_found"},
		{apperr.Wrap(apperr.ErrPermissionDenied, "feeds", "delete", "", nil), "permission_denied"},
		{apperr.Wrap(apperr.ErrStorageCorruption, "docstore", "read", "", nil), "storage_corruption"},
		{apperr.NewUploadError(apperr.UploadTooLarge, "%d bytes", 10), "upload"},
		{errors.New("other"), "internal"},
	}
	for _, tc := range cases {
		if got := apperr.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestUploadErrorMatching(t *testing.T) {
	err := error(&apperr.UploadError{Reason: apperr.UploadMoveFailed, Err: fs.ErrPermission})
	if !errors.Is(err, apperr.ErrUpload) {
		t.Fatal("expected ErrUpload match")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatal("expected cause match")
	}
	var uploadErr *apperr.UploadError
	if !errors.As(err, &uploadErr) || uploadErr.Reason != apperr.UploadMoveFailed {
		t.Fatalf("expected UploadError with move_failed, got %#v", uploadErr)
	}
	if !apperr.Recoverable(err) {
		t.Fatal("expected upload errors to be recoverable")
	}
	if apperr.Recoverable(apperr.Wrap(apperr.ErrStorageCorruption, "docstore", "read", "", nil)) {
		t.Fatal("storage corruption must not be recoverable")
	}
}
