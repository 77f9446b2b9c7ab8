package config

// Session holds the inputs that identify one dump-analysis session. It is
// populated from flags, the config file, and interactive prompts, in that
// order of precedence.
type Session struct {
	// DumpPath is the memory image: an ELF core file or a flat raw image.
	DumpPath string
	// MapPath is the kallsyms/System.map format symbol table.
	MapPath string
	// ProfilePath is the YAML kernel layout profile.
	ProfilePath string

	// FlatBase is the load address used when DumpPath is a flat image.
	FlatBase uint64
	// Flat forces flat-image interpretation of DumpPath.
	Flat bool

	// Machine suppresses prompts and informational prints; output becomes
	// exact and script-friendly.
	Machine bool
}

// FilesQuery holds the per-invocation arguments of the files command.
type FilesQuery struct {
	// Dentry is the files -d argument, a hexadecimal dentry address.
	Dentry string
	// Reference is the files -R argument.
	Reference string
	// Contexts are the trailing pid/taskp arguments.
	Contexts []string
}
