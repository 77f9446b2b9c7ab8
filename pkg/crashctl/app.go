package crashctl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	survey "gopkg.in/AlecAivazis/survey.v1"

	"github.com/kdump-tools/crashctl/pkg/kcore"
	"github.com/kdump-tools/crashctl/pkg/kernel"
	"github.com/kdump-tools/crashctl/pkg/options"
)

/*
Notes on CLI design

An options struct is populated by a combination of:
- user input args
- user input flags
- config file
- defaults

A specific command is specified by a chain of strings

The options struct is interpreted according to the command

All commands should have an interactive mode.
Option validation is implemented with this pattern:
```
if err := top.ensureSession(); err != nil {
    return err
}
```
- Methods are built off of the root of the options tree (the "top" var in
  the example above) so sub commands can share common values.
- Sub commands only modify their portion of the options tree.
*/

const descriptionUsage = `Analyze a kernel crash dump.
Point crashctl at a dump (ELF core or flat image), a symbol map
(kallsyms/System.map format), and a kernel layout profile, then query
process contexts and their open files. Run without a subcommand for an
interactive crash> shell.
`

func App(version string) (*cobra.Command, error) {
	opts := &Options{}
	app := &cobra.Command{
		Use:     "crashctl",
		Short:   "interactive kernel crash dump analysis",
		Long:    descriptionUsage,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.readConfigValues(&opts.Config)
			opts.logCmd(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// no sub command: open the dump and enter the shell
			return opts.runShell()
		},
	}

	app.SuggestionsMinimumDistance = 1
	app.AddCommand(
		FilesCmd(opts),
		ForeachCmd(opts),
		PsCmd(opts),
		completionCmd(),
	)

	app.PersistentFlags().BoolVar(&opts.Json, "json", false, "output json format")
	applySessionFlags(&opts.Session, app.PersistentFlags())

	return app, nil
}

// ensureSession makes sure the dump, symbol map, and profile are known,
// prompting for anything still missing, then opens the kernel handle once.
func (o *Options) ensureSession() error {
	if o.kernel != nil {
		return nil
	}
	if err := o.ensurePath(&o.Session.DumpPath, "Path to the dump (ELF core or flat image)"); err != nil {
		return err
	}
	if err := o.ensurePath(&o.Session.MapPath, "Path to the symbol map (kallsyms format)"); err != nil {
		return err
	}
	if err := o.ensurePath(&o.Session.ProfilePath, "Path to the kernel layout profile (yaml)"); err != nil {
		return err
	}
	return o.openKernel()
}

func (o *Options) ensurePath(path *string, message string) error {
	if *path != "" {
		return nil
	}
	if o.Session.Machine {
		return errors.Errorf("missing required input: %v", message)
	}
	prompt := &survey.Input{Message: message}
	if err := survey.AskOne(prompt, path, survey.Required); err != nil {
		return err
	}
	return nil
}

func (o *Options) openKernel() error {
	mem, err := o.openDump()
	if err != nil {
		return err
	}

	o.printVerbosef("Loading symbol map from %v\n", o.Session.MapPath)
	syms, err := kcore.LoadSymbolMap(o.Session.MapPath)
	if err != nil {
		return err
	}
	log.Debugf("symbol map: %v symbols", syms.Len())

	o.printVerbosef("Loading kernel profile from %v\n", o.Session.ProfilePath)
	prof, err := kcore.LoadProfile(o.Session.ProfilePath)
	if err != nil {
		return err
	}

	k, err := kernel.New(mem, syms, prof)
	if err != nil {
		return errors.Wrap(err, "opening kernel")
	}
	o.kernel = k
	return nil
}

func (o *Options) openDump() (kcore.Memory, error) {
	if o.Session.Flat {
		o.printVerbosef("Loading flat image %v at base %#x\n", o.Session.DumpPath, o.Session.FlatBase)
		return kcore.OpenFlatImage(o.Session.DumpPath, o.Session.FlatBase)
	}
	core, err := kcore.OpenELFCore(o.Session.DumpPath)
	if err != nil {
		return nil, err
	}
	o.closer = core
	return core, nil
}

// currentContext is the context used when a command names none: the task
// selected with the shell's set command, or PID 1.
func (o *Options) currentContext() (*kernel.Task, error) {
	if o.current != nil {
		return o.current, nil
	}
	t, err := o.kernel.TaskByPID(options.DefaultContextPID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving default context")
	}
	o.current = t
	return t, nil
}

// setContext implements the shell's set command.
func (o *Options) setContext(arg string) error {
	t, err := o.kernel.LookupContext(arg)
	if err != nil {
		return err
	}
	o.current = t
	return nil
}

// chooseContext handles a bare set command: pick the context from a list
// of all tasks.
func (o *Options) chooseContext() error {
	if o.Session.Machine {
		return errors.New("machine mode requires an explicit pid or task address")
	}
	tasks, err := o.kernel.Tasks()
	if err != nil {
		return err
	}
	choices := make([]string, 0, len(tasks))
	for _, t := range tasks {
		choices = append(choices, fmt.Sprintf("%v (%v)", t.PID, t.Comm))
	}
	var choice string
	if err := o.chooseString("Select a context", &choice, choices); err != nil {
		return err
	}
	for i, c := range choices {
		if c == choice {
			o.current = tasks[i]
			return nil
		}
	}
	return errors.Errorf("no context matching %q", choice)
}

// parseHexAddr accepts an address with or without a 0x prefix.
func parseHexAddr(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	addr, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, errors.Errorf("%q is not a hexadecimal address", s)
	}
	return addr, nil
}
