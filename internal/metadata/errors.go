// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrModuleNotTracked  = errors.New("module is not tracked")
	ErrMalformedDocument = errors.New("malformed metadata document")
)
