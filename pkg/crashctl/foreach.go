package crashctl

import (
	"encoding/json"
	"os"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kdump-tools/crashctl/pkg/kernel"
)

func ForeachCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "foreach files [-R reference]",
		Short:   "run the files listing over every context",
		Example: "  crashctl foreach files -R pts/4",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 || args[0] != "files" {
				return errors.New("foreach supports exactly one sweep: files")
			}
			if o.Files.Dentry != "" {
				return errors.New("-d is not context specific; use files -d instead")
			}
			if err := o.ensureSession(); err != nil {
				return err
			}
			return o.runForeachFiles()
		},
	}
	applyFilesFlags(&o.Files, cmd.Flags())
	return cmd
}

// runForeachFiles sweeps every context. A context that fails to decode is
// reported at the end but does not abort the sweep; a crashed kernel is
// allowed to contain some garbage.
func (o *Options) runForeachFiles() error {
	var ref *kernel.Reference
	if o.Files.Reference != "" {
		r := kernel.ParseReference(o.Files.Reference)
		ref = &r
	}

	tasks, err := o.kernel.Tasks()
	if err != nil {
		return err
	}

	var sweepErr *multierror.Error
	printed := 0
	for _, t := range tasks {
		listing, matched, err := o.buildContextFiles(t, ref)
		if err != nil {
			sweepErr = multierror.Append(sweepErr, errors.Wrapf(err, "context %v", t.PID))
			continue
		}
		if ref != nil && !matched {
			continue
		}
		if printed > 0 {
			o.info("")
		}
		if o.Json {
			if err := json.NewEncoder(os.Stdout).Encode(listing); err != nil {
				return err
			}
		} else {
			renderContextFiles(os.Stdout, listing)
		}
		printed++
	}
	return sweepErr.ErrorOrNil()
}
