package fwup

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("raw_write", CodeValidation, "block_offset out of range")

	if err.Op != "raw_write" {
		t.Errorf("Expected Op=raw_write, got %s", err.Op)
	}
	if err.Code != CodeValidation {
		t.Errorf("Expected Code=CodeValidation, got %s", err.Code)
	}

	expected := "fwup: raw_write: block_offset out of range"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestResourceError(t *testing.T) {
	err := NewResourceError("fat_write", "rootfs.squashfs", CodeResource, "hash mismatch")

	expected := "fwup: fat_write: hash mismatch (resource=rootfs.squashfs)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("short write")
	err := WrapError("raw_write", CodeIO, inner)

	if err.Code != CodeIO {
		t.Errorf("Expected Code=CodeIO, got %s", err.Code)
	}
	if !errors.Is(err, inner) {
		t.Error("Expected wrapped error to satisfy errors.Is for the inner error")
	}
}

func TestWrapErrorPreservesCodeOfNestedFwupError(t *testing.T) {
	inner := NewError("fat_mkfs", CodeFormat, "bad boot sector")
	err := WrapError("apply", CodeIO, inner)

	if err.Code != CodeFormat {
		t.Errorf("WrapError should preserve the inner fwup error's code, got %s", err.Code)
	}
	if err.Op != "apply" {
		t.Errorf("WrapError should update Op to the outer operation, got %s", err.Op)
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("trim", CodeIO, "discard failed")

	if !IsCode(err, CodeIO) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, CodeValidation) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, CodeIO) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorsIsByCode(t *testing.T) {
	err := NewError("uboot_setenv", CodeFormat, "corrupt environment")

	if !errors.Is(err, &Error{Code: CodeFormat}) {
		t.Error("errors.Is should match on Code")
	}
	if errors.Is(err, &Error{Code: CodeSafety}) {
		t.Error("errors.Is should not match a different Code")
	}
}
