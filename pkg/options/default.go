package options

var (
	// ConfigDirName is the per-user state directory under $HOME.
	ConfigDirName = ".crashctl"
	// ConfigFileName is the config file within ConfigDirName.
	ConfigFileName = "config.yaml"
	// CmdLogFileName receives the command audit log within ConfigDirName.
	CmdLogFileName = "cmd.log"

	// DefaultContextPID is the context used when no pid/taskp argument is
	// given outside the interactive shell.
	DefaultContextPID = int32(1)

	// ShellPrompt is printed by the interactive shell.
	ShellPrompt = "crash> "

	// ShellCommands are the commands the interactive shell understands.
	ShellCommands = []string{"files", "foreach", "ps", "set", "help", "exit"}
)
