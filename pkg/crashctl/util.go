package crashctl

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	survey "gopkg.in/AlecAivazis/survey.v1"

	"github.com/kdump-tools/crashctl/pkg/cmdlog"
	"github.com/kdump-tools/crashctl/pkg/options"
)

func (o *Options) printVerbose(msg string) {
	if o.Config.verbose && !o.Session.Machine {
		fmt.Println(msg)
	}
}

func (o *Options) printVerbosef(tmpl string, args ...interface{}) {
	if o.Config.verbose && !o.Session.Machine {
		fmt.Printf(tmpl, args...)
	}
}

// only print info if crashctl is being used by a human
// machine mode expects an exact output
func (o *Options) info(msg string) {
	if !o.Session.Machine {
		fmt.Println(msg)
	}
}

func (o *Options) logCmd(cmd *cobra.Command, args []string) {
	if !o.Config.logCmds {
		return
	}

	dir, err := crashctlDir()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger, err := cmdlog.NewFileLogger(filepath.Join(dir, options.CmdLogFileName))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer logger.Sync()
	logger.Info("invocation",
		zap.String("command", cmd.CommandPath()),
		zap.Strings("args", args),
		zap.String("flags", getFlagSpec(cmd)),
	)
}

func getChangedFlags(cmd *cobra.Command) map[string]pflag.Value {
	setFlags := make(map[string]pflag.Value)
	ff := func(f *pflag.Flag) {
		if f.Changed {
			setFlags[f.Name] = f.Value
		}
	}
	cmd.Flags().VisitAll(ff)
	return setFlags
}

func getFlagSpec(cmd *cobra.Command) string {
	flagsChanged := getChangedFlags(cmd)
	str := ""
	for k, v := range flagsChanged {
		switch v.Type() {
		case "bool":
			str += fmt.Sprintf("--%v ", k)
		case "string":
			fallthrough
		default:
			str += fmt.Sprintf("--%v \"%v\" ", k, v)
		}
	}
	return strings.TrimSpace(str)
}

func (o *Options) chooseString(message string, choice *string, opts []string) error {
	question := &survey.Select{
		Message: message,
		Options: opts,
	}
	if err := survey.AskOne(question, choice, survey.Required); err != nil {
		return err
	}
	return nil
}
