package crashctl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kdump-tools/crashctl/pkg/kernel"
)

const filesUsage = `Display information about the open files of process contexts.

For each context, files prints the context's current root directory and
working directory, then one row per open file descriptor: the file struct,
dentry, and inode addresses, the file type, and the pathname. Contexts are
named by decimal PID or hexadecimal task_struct address; with no arguments
the current context is used.

The -d option is not context specific: given a hexadecimal dentry address
it displays the dentry's inode, super block, file type, and pathname.

The -R option, typically invoked through "foreach files", searches for
references to a file descriptor number, filename, or dentry, inode, or
file structure address, and prints only the matching rows.`

const filesExample = `  # open files of the current context
  crashctl files

  # open files of pid 462 and of the task at ffff8800c67f2000
  crashctl files 462 ffff8800c67f2000

  # resolve a dentry address
  crashctl files -d ffff8800f745fd60

  # every task with /dev/pts/4 open
  crashctl foreach files -R pts/4`

func FilesCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "files [-d dentry] | [-R reference] [pid | taskp]...",
		Short:   "display open files of process contexts",
		Long:    filesUsage,
		Example: filesExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Files.Contexts = args
			if err := o.ensureSession(); err != nil {
				return err
			}
			return o.runFiles()
		},
	}
	applyFilesFlags(&o.Files, cmd.Flags())
	return cmd
}

func (o *Options) runFiles() error {
	if o.Files.Dentry != "" && o.Files.Reference != "" {
		return errors.New("-d and -R are mutually exclusive")
	}

	if o.Files.Dentry != "" {
		return o.runFilesDentry()
	}

	var ref *kernel.Reference
	if o.Files.Reference != "" {
		r := kernel.ParseReference(o.Files.Reference)
		ref = &r
	}

	var tasks []*kernel.Task
	if len(o.Files.Contexts) == 0 {
		t, err := o.currentContext()
		if err != nil {
			return err
		}
		tasks = []*kernel.Task{t}
	} else {
		for _, arg := range o.Files.Contexts {
			t, err := o.kernel.LookupContext(arg)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
	}

	for i, t := range tasks {
		listing, _, err := o.buildContextFiles(t, ref)
		if err != nil {
			return err
		}
		if i > 0 {
			o.info("")
		}
		if o.Json {
			if err := json.NewEncoder(os.Stdout).Encode(listing); err != nil {
				return err
			}
		} else {
			renderContextFiles(os.Stdout, listing)
		}
	}
	return nil
}

func (o *Options) runFilesDentry() error {
	addr, err := parseHexAddr(o.Files.Dentry)
	if err != nil {
		return err
	}
	info, err := o.kernel.ResolveDentry(addr)
	if err != nil {
		return errors.Wrapf(err, "resolving dentry %v", o.Files.Dentry)
	}
	if o.Json {
		return json.NewEncoder(os.Stdout).Encode(dentryReport{
			Dentry:     kernel.FormatAddr(info.Dentry, o.kernel.PtrSize()),
			Inode:      kernel.FormatAddr(info.Inode, o.kernel.PtrSize()),
			SuperBlock: kernel.FormatAddr(info.SuperBlock, o.kernel.PtrSize()),
			Type:       info.Type.String(),
			Path:       info.Path,
		})
	}
	renderDentryReport(os.Stdout, o.kernel.PtrSize(), info)
	return nil
}

// contextFiles is a fully rendered files listing for one context.
type contextFiles struct {
	PID     int32     `json:"pid"`
	Task    string    `json:"task"`
	CPU     string    `json:"cpu"`
	Command string    `json:"command"`
	Root    string    `json:"root"`
	CWD     string    `json:"cwd"`
	Files   []fileRow `json:"files"`
}

type fileRow struct {
	FD     int32  `json:"fd"`
	File   string `json:"file"`
	Dentry string `json:"dentry"`
	Inode  string `json:"inode"`
	Type   string `json:"type"`
	Path   string `json:"path"`
}

type dentryReport struct {
	Dentry     string `json:"dentry"`
	Inode      string `json:"inode"`
	SuperBlock string `json:"superblock"`
	Type       string `json:"type"`
	Path       string `json:"path"`
}

// buildContextFiles gathers one context's listing, filtered by ref when
// given. The bool result reports whether any row survived the filter.
func (o *Options) buildContextFiles(t *kernel.Task, ref *kernel.Reference) (contextFiles, bool, error) {
	sz := o.kernel.PtrSize()

	cpu := "?"
	if t.CPU >= 0 {
		cpu = fmt.Sprintf("%v", t.CPU)
	}
	listing := contextFiles{
		PID:     t.PID,
		Task:    kernel.FormatAddr(t.Addr, sz),
		CPU:     cpu,
		Command: t.Comm,
	}

	fsc, err := o.kernel.FSContextOf(t)
	if err != nil {
		return contextFiles{}, false, err
	}
	listing.Root = fsc.Root
	listing.CWD = fsc.CWD

	open, err := o.kernel.OpenFiles(t)
	if err != nil {
		return contextFiles{}, false, err
	}
	if ref != nil {
		open = kernel.FilterOpenFiles(*ref, open)
	}
	for _, of := range open {
		listing.Files = append(listing.Files, fileRow{
			FD:     of.FD,
			File:   kernel.FormatAddr(of.File, sz),
			Dentry: kernel.FormatAddr(of.Dentry, sz),
			Inode:  kernel.FormatAddr(of.Inode, sz),
			Type:   of.Type.String(),
			Path:   of.Path,
		})
	}
	return listing, len(listing.Files) > 0, nil
}

func renderContextFiles(w io.Writer, listing contextFiles) {
	fmt.Fprintf(w, "PID: %-6v TASK: %v  CPU: %-3v COMMAND: %q\n",
		listing.PID, listing.Task, listing.CPU, listing.Command)
	fmt.Fprintf(w, "ROOT: %v    CWD: %v\n", listing.Root, listing.CWD)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FD\tFILE\tDENTRY\tINODE\tTYPE\tPATH")
	for _, row := range listing.Files {
		fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\t%v\n",
			row.FD, row.File, row.Dentry, row.Inode, row.Type, row.Path)
	}
	tw.Flush()
}

func renderDentryReport(w io.Writer, ptrSize int, info kernel.DentryInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DENTRY\tINODE\tSUPERBLK\tTYPE\tPATH")
	fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\n",
		kernel.FormatAddr(info.Dentry, ptrSize),
		kernel.FormatAddr(info.Inode, ptrSize),
		kernel.FormatAddr(info.SuperBlock, ptrSize),
		info.Type, info.Path)
	tw.Flush()
}
