package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const banner = `
███╗   ███╗ █████╗ ███████╗██████╗
████╗ ████║██╔══██╗██╔════╝██╔══██╗
██╔████╔██║███████║███████╗██████╔╝
██║╚██╔╝██║██╔══██║╚════██║██╔═══╝
██║ ╚═╝ ██║██║  ██║███████║██║
╚═╝     ╚═╝╚═╝  ╚═╝╚══════╝╚═╝

Learn, Synthesize, Validate, Deploy`

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "masp",
		Short:         "Autonomous strategy synthesis agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.yaml)")
	root.AddCommand(runCMD(&cfgPath), statusCMD(&cfgPath), checkCMD(&cfgPath), historyCMD(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
