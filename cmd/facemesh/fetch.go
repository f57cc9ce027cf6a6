package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facemesh/internal/httpc"
	"github.com/teslashibe/go-facemesh/pkg/landmarker"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch-model",
	Short: "Download the face landmarker model into the cache directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := landmarker.FetchModel(cmd.Context(), httpc.NewClient(httpc.AssetTimeout), cfg.ModelURL, cfg.ModelCacheDir)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
