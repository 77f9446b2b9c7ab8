package crashctl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kdump-tools/crashctl/pkg/kernel"
)

func PsCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ps",
		Short:   "list all process contexts in the dump",
		Aliases: []string{"tasks"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ensureSession(); err != nil {
				return err
			}
			return o.runPs()
		},
	}
	return cmd
}

type taskRow struct {
	PID     int32  `json:"pid"`
	Task    string `json:"task"`
	CPU     string `json:"cpu"`
	Command string `json:"command"`
}

func (o *Options) runPs() error {
	tasks, err := o.kernel.Tasks()
	if err != nil {
		return err
	}

	rows := make([]taskRow, 0, len(tasks))
	for _, t := range tasks {
		cpu := "?"
		if t.CPU >= 0 {
			cpu = fmt.Sprintf("%v", t.CPU)
		}
		rows = append(rows, taskRow{
			PID:     t.PID,
			Task:    kernel.FormatAddr(t.Addr, o.kernel.PtrSize()),
			CPU:     cpu,
			Command: t.Comm,
		})
	}

	if o.Json {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}
	renderTasks(os.Stdout, rows)
	return nil
}

func renderTasks(w io.Writer, rows []taskRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tTASK\tCPU\tCOMMAND")
	for _, r := range rows {
		fmt.Fprintf(tw, "%v\t%v\t%v\t%q\n", r.PID, r.Task, r.CPU, r.Command)
	}
	tw.Flush()
}
