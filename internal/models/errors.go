package models

import "errors"

var (
	// ErrNoLiveConnection means an approve/decline/send targeted a device
	// with no open transport. The caller decides whether to retry.
	ErrNoLiveConnection = errors.New("no live connection for device")

	// ErrNoSession means the device has never joined
	ErrNoSession = errors.New("no session for device")

	ErrPayloadTooLarge = errors.New("photo payload exceeds size limit")
	ErrInvalidImage    = errors.New("photo payload is not a decodable image")
	ErrPathTraversal   = errors.New("path escapes storage root")
)
