package audio

import "errors"

// ErrFrameTooShort is returned for frames shorter than the transport header
var ErrFrameTooShort = errors.New("audio frame shorter than header")

// ParseFrame validates a raw transport frame and returns its payload with the
// fixed-length header stripped. The header content is opaque and discarded.
// The returned payload is a copy; callers may retain it after the transport
// reuses the read buffer.
func ParseFrame(raw []byte, headerLen int) ([]byte, error) {
	if len(raw) <= headerLen {
		return nil, ErrFrameTooShort
	}

	payload := make([]byte, len(raw)-headerLen)
	copy(payload, raw[headerLen:])
	return payload, nil
}
