// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import "errors"

var (
	ErrUnknownModuleKind   = errors.New("unknown module kind")
	ErrInvalidDefinition   = errors.New("invalid custom module definition")
	ErrUnsupportedFileType = errors.New("unsupported definitions file type")
)
