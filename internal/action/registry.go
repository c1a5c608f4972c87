package action

// Action is one entry in the fixed action table: the {validate,
// compute_progress, run} triple spec §4.2 names for a single action name.
type Action struct {
	Validate        func(ctx *Context, args []string, variant bool) error
	ComputeProgress func(ctx *Context, args []string, variant bool) (uint64, error)
	Run             func(ctx *Context, args []string, variant bool) error

	// SupportsVariant marks actions whose name may carry a trailing `!`
	// (fat_mv, fat_rm).
	SupportsVariant bool

	// FileOnly marks actions that may only appear in an on-resource funlist
	// and are the ones permitted to consume Context.Resource.Stream.
	FileOnly bool
}

func oneUnit(ctx *Context, args []string, variant bool) (uint64, error) { return 1, nil }

var registry = map[string]Action{
	"raw_write": {
		Validate:        rawWriteValidate,
		ComputeProgress: rawWriteComputeProgress,
		Run:             rawWriteRun,
		FileOnly:        true,
	},
	"raw_memset": {
		Validate:        rawMemsetValidate,
		ComputeProgress: rawMemsetComputeProgress,
		Run:             rawMemsetRun,
	},
	"trim": {
		Validate:        trimValidate,
		ComputeProgress: trimComputeProgress,
		Run:             trimRun,
	},
	"mbr_write": {
		Validate:        mbrWriteValidate,
		ComputeProgress: mbrWriteComputeProgress,
		Run:             mbrWriteRun,
	},
	"fat_mkfs": {
		Validate:        fatMkfsValidate,
		ComputeProgress: oneUnit,
		Run:             fatMkfsRun,
	},
	"fat_attrib": {
		Validate:        fatAttribValidate,
		ComputeProgress: oneUnit,
		Run:             fatAttribRun,
	},
	"fat_write": {
		Validate:        fatWriteValidate,
		ComputeProgress: fatWriteComputeProgress,
		Run:             fatWriteRun,
		FileOnly:        true,
	},
	"fat_mv": {
		Validate:        fatMvValidate,
		ComputeProgress: oneUnit,
		Run:             fatMvRun,
		SupportsVariant: true,
	},
	"fat_rm": {
		Validate:        fatRmValidate,
		ComputeProgress: oneUnit,
		Run:             fatRmRun,
		SupportsVariant: true,
	},
	"fat_cp": {
		Validate:        fatCpValidate,
		ComputeProgress: oneUnit,
		Run:             fatCpRun,
	},
	"fat_mkdir": {
		Validate:        fatMkdirValidate,
		ComputeProgress: oneUnit,
		Run:             fatMkdirRun,
	},
	"fat_setlabel": {
		Validate:        fatSetlabelValidate,
		ComputeProgress: oneUnit,
		Run:             fatSetlabelRun,
	},
	"fat_touch": {
		Validate:        fatTouchValidate,
		ComputeProgress: oneUnit,
		Run:             fatTouchRun,
	},
	"uboot_clearenv": {
		Validate:        ubootClearenvValidate,
		ComputeProgress: oneUnit,
		Run:             ubootClearenvRun,
	},
	"uboot_setenv": {
		Validate:        ubootSetenvValidate,
		ComputeProgress: oneUnit,
		Run:             ubootSetenvRun,
	},
	"uboot_unsetenv": {
		Validate:        ubootUnsetenvValidate,
		ComputeProgress: oneUnit,
		Run:             ubootUnsetenvRun,
	},
	"uboot_recover": {
		Validate:        ubootRecoverValidate,
		ComputeProgress: oneUnit,
		Run:             ubootRecoverRun,
	},
	"error": {
		Validate: errorValidate,
		Run:      errorRun,
	},
	"info": {
		Validate: infoValidate,
		Run:      infoRun,
	},
	"path_write": {
		Validate:        pathWriteValidate,
		ComputeProgress: pathWriteComputeProgress,
		Run:             pathWriteRun,
		FileOnly:        true,
	},
	"pipe_write": {
		Validate:        pipeWriteValidate,
		ComputeProgress: pipeWriteComputeProgress,
		Run:             pipeWriteRun,
		FileOnly:        true,
	},
	"execute": {
		Validate: executeValidate,
		Run:      executeRun,
	},
}
