package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facemesh/internal/config"
	"github.com/teslashibe/go-facemesh/internal/log"
	"github.com/teslashibe/go-facemesh/pkg/app"
)

var (
	flagDevice   string
	flagBackend  string
	flagModel    string
	flagTopology string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Capture the webcam and serve the overlay page",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("device") {
			cfg.CameraDevice = flagDevice
		}
		if flags.Changed("backend") {
			cfg.Backend = flagBackend
		}
		if flags.Changed("model") {
			cfg.ModelPath = flagModel
		}
		if flags.Changed("topology") {
			cfg.TopologyFile = flagTopology
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		log.Info("facemesh starting",
			"url", "http://localhost:"+cfg.Port,
			"backend", cfg.Backend,
			"delegate", cfg.Delegate,
			"device", cfg.CameraDevice,
		)
		return a.Run(cmd.Context())
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&flagDevice, "device", "0", "Camera index or capture URL (overrides CAMERA_DEVICE)")
	f.StringVar(&flagBackend, "backend", config.BackendWorker, "Landmarker runtime: worker or remote (overrides LANDMARKER_BACKEND)")
	f.StringVar(&flagModel, "model", "", "Local model file; skips the download (overrides MODEL_PATH)")
	f.StringVar(&flagTopology, "topology", "", "JSON file with connector groups (overrides TOPOLOGY_FILE)")
	rootCmd.AddCommand(serveCmd)
}
