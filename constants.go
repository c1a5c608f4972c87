package fwup

import "github.com/fwup-go/fwup/internal/constants"

// Re-export the engine-wide constants for the public API.
const (
	// BlockSize is FWUP_BLOCK_SIZE.
	BlockSize = constants.BlockSize

	// MaxFunArgs is FUN_MAX_ARGS.
	MaxFunArgs = constants.MaxFunArgs
)
