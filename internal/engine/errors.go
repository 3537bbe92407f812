// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import "errors"

var (
	ErrModularDisabled = errors.New("modular design is disabled")
	ErrLegacyPending   = errors.New("spec has an unmigrated legacy design document")
	ErrLedgerDisabled  = errors.New("history ledger is disabled")
	ErrNoModules       = errors.New("no module kinds selected")
)
