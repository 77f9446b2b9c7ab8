package crashctl

import (
	"io"

	"github.com/kdump-tools/crashctl/pkg/config"
	"github.com/kdump-tools/crashctl/pkg/kernel"
)

type Options struct {
	Json bool

	Session config.Session
	Files   config.FilesQuery

	// Internal contains cli-specific metadata
	Internal Internal

	// Config may be blended into other options
	Config Config

	kernel  *kernel.Kernel
	current *kernel.Task
	closer  io.Closer
}

type Internal struct {
	// ConfigLoaded should be set once the config has been loaded
	ConfigLoaded bool
}

type Config struct {
	verbose bool
	logCmds bool
}
