package main

import (
	"fmt"
	"os"

	"github.com/kdump-tools/crashctl/pkg/crashctl"
	"github.com/kdump-tools/crashctl/pkg/version"
)

func main() {
	app, err := crashctl.App(version.Version)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := app.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
