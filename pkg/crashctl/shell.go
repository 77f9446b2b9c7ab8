package crashctl

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/kdump-tools/crashctl/pkg/config"
	"github.com/kdump-tools/crashctl/pkg/options"
)

const shellHelp = `commands:
  files [-d dentry] | [-R reference] [pid | taskp]...
        open files of one or more contexts
  foreach files [-R reference]
        files listing over every context
  ps    list all contexts
  set [pid | taskp]
        change the current context; prompts with a task list when bare
  help  this text
  exit  leave the shell`

// runShell is the base command: an interactive loop over the same handlers
// the one-shot subcommands use.
func (o *Options) runShell() error {
	if err := o.ensureSession(); err != nil {
		return err
	}
	if o.closer != nil {
		defer o.closer.Close()
	}

	t, err := o.currentContext()
	if err != nil {
		return err
	}
	o.info(fmt.Sprintf("crashctl: dump %v", o.Session.DumpPath))
	o.info(fmt.Sprintf("current context: PID %v (%v)", t.PID, t.Comm))
	o.printVerbose("Type help for the command list.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(options.ShellPrompt)
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		done, err := o.dispatch(strings.Fields(line))
		if err != nil {
			fmt.Println(err)
		}
		if done {
			return nil
		}
	}
}

func (o *Options) dispatch(fields []string) (done bool, err error) {
	switch fields[0] {
	case "files":
		return false, o.shellFiles(fields[1:])
	case "foreach":
		if len(fields) < 2 || fields[1] != "files" {
			return false, errors.New("usage: foreach files [-R reference]")
		}
		return false, o.shellForeach(fields[2:])
	case "ps":
		return false, o.runPs()
	case "set":
		switch len(fields) {
		case 1:
			if err := o.chooseContext(); err != nil {
				return false, err
			}
		case 2:
			if err := o.setContext(fields[1]); err != nil {
				return false, err
			}
		default:
			return false, errors.New("usage: set [pid | taskp]")
		}
		o.info(fmt.Sprintf("current context: PID %v (%v)", o.current.PID, o.current.Comm))
		return false, nil
	case "help", "?":
		fmt.Println(shellHelp)
		return false, nil
	case "exit", "quit", "q":
		return true, nil
	}
	return false, errors.Errorf("unknown command %q (commands: %v)", fields[0], strings.Join(options.ShellCommands, ", "))
}

func (o *Options) shellFiles(args []string) error {
	q, rest, err := parseFilesArgs("files", args)
	if err != nil {
		return err
	}
	q.Contexts = rest
	o.Files = q
	return o.runFiles()
}

func (o *Options) shellForeach(args []string) error {
	q, rest, err := parseFilesArgs("foreach files", args)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errors.Errorf("foreach files takes no context arguments, got %v", rest)
	}
	if q.Dentry != "" {
		return errors.New("-d is not context specific; use files -d instead")
	}
	o.Files = q
	return o.runForeachFiles()
}

func parseFilesArgs(name string, args []string) (config.FilesQuery, []string, error) {
	q := config.FilesQuery{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	applyFilesFlags(&q, fs)
	if err := fs.Parse(args); err != nil {
		return config.FilesQuery{}, nil, err
	}
	return q, fs.Args(), nil
}
