// Package constants holds the compile-time limits and default sizes shared
// across the firmware engine's subpackages.
package constants

const (
	// BlockSize is FWUP_BLOCK_SIZE: the fixed unit of output-device addressing.
	BlockSize = 512

	// MaxFunArgs is FUN_MAX_ARGS, the compile-time upper bound on a funlist
	// tuple's argc (the action name plus its operands).
	MaxFunArgs = 9

	// TrimUnitSize is the byte count that counts as one progress unit for
	// the trim action (128 KiB per spec §4.2).
	TrimUnitSize = 128 * 1024

	// StreamChunkSize bounds how much a resource stream pulls from the
	// archive reader per call, keeping memory use independent of resource
	// size.
	StreamChunkSize = 64 * 1024

	// MaxWriteBytes is the INT32_MAX-derived ceiling on count*512 operands
	// (block_count * BlockSize must not exceed this).
	MaxWriteBytes = 1<<31 - 1
)
