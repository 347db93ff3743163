package rt

import (
	"fortio.org/safecast"
)

// StatusSuccess is returned by copy stubs when every requested element was
// copied. It means success regardless of the requested length.
const StatusSuccess int32 = 0

// EncodeFailure encodes a partial copy that stopped after copied elements as
// the bitwise complement of the count. The result is always negative and so
// never collides with StatusSuccess.
func EncodeFailure(copied int) (int32, error) {
	if copied < 0 {
		return 0, newError(ErrStatus, "negative copied count %d", copied)
	}
	n, err := safecast.Conv[int32](copied)
	if err != nil {
		return 0, newError(ErrStatus, "copied count %d does not fit the status: %v", copied, err)
	}
	return ^n, nil
}

// DecodeStatus interprets a copy stub result. failed is false for
// StatusSuccess; otherwise copied is the number of leading elements already
// written.
func DecodeStatus(status int32) (copied int, failed bool) {
	if status == StatusSuccess {
		return 0, false
	}
	return int(^status), true
}

// StatusError converts a copy stub result into the error raised at the call
// site: nil on success, *ArrayStoreError otherwise.
func StatusError(status int32, origin uint32) error {
	copied, failed := DecodeStatus(status)
	if !failed {
		return nil
	}
	if copied < 0 {
		return &RuntimeError{Code: ErrStatus, Message: "positive status is not a valid copy result", Origin: origin}
	}
	return &ArrayStoreError{Copied: copied, Index: copied, Origin: origin}
}
