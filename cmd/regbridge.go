package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stephnangue/regbridge/cmd/server"
)

var regbridgeCmd = &cobra.Command{
	Use:   "regbridge",
	Short: "regbridge bridges OAuth dynamic client registration onto a RESTCONF admin API",
	Long: `regbridge fronts an administrative client-management API with bearer-token
authorization and translates DCR-style registration payloads into the
vendor's RESTCONF client store format before relaying them upstream.`,
}

func Execute() {
	if err := regbridgeCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	regbridgeCmd.AddCommand(server.ServerCmd)
}
