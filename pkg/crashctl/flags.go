package crashctl

import (
	"github.com/spf13/pflag"

	"github.com/kdump-tools/crashctl/pkg/config"
)

func applySessionFlags(cfg *config.Session, f *pflag.FlagSet) {
	f.StringVar(&cfg.DumpPath, "dump", "", "dump to analyze: ELF core file or flat raw image")
	f.StringVar(&cfg.MapPath, "map", "", "symbol map in kallsyms/System.map format")
	f.StringVar(&cfg.ProfilePath, "profile", "", "kernel layout profile (yaml)")
	f.BoolVar(&cfg.Flat, "flat", false, "treat the dump as a flat raw image")
	f.Uint64Var(&cfg.FlatBase, "flat-base", 0, "load address of a flat raw image")
	f.BoolVar(&cfg.Machine, "machine", false, "machine mode input and output")
}

func applyFilesFlags(q *config.FilesQuery, f *pflag.FlagSet) {
	f.StringVarP(&q.Dentry, "dentry", "d", "", "display inode, super block, type, and pathname of this hexadecimal dentry address")
	f.StringVarP(&q.Reference, "reference", "R", "", "search for references to this file descriptor number, filename, or structure address")
}
