package cmd

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/gophertribe/devtool/build"
	"github.com/spf13/cobra"
)

// targets maps buildable binaries to their main packages.
var targets = map[string]string{
	"twi": "./cmd/twi",
	"dev": "./cmd/dev",
}

const configPackage = "github.com/mklimuk/twi/config"

func BuildCmd() *cobra.Command {
	var (
		target, version string
		goos, goarch    string
		cross           string
		noCache         bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a twi binary into dist/",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, ok := targets[target]
			if !ok {
				return fmt.Errorf("unknown target %q", target)
			}
			native := goos == runtime.GOOS && goarch == runtime.GOARCH
			if !native && target == "twi" {
				// hid needs cgo: cross builds run in the build image for the target platform
				return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", goos, goarch),
					[]string{"build", "--target", target, "--version", version, "--cross", goos + "/" + goarch},
					build.DockerBuildOpts{
						NoCache: noCache,
						Image:   "gophertribe/gobuild:1.25-bookworm",
					})
			}
			if cross != "" {
				var ok bool
				goos, goarch, ok = strings.Cut(cross, "/")
				if !ok {
					return fmt.Errorf("invalid cross platform %q", cross)
				}
			}
			out := fmt.Sprintf("dist/%s", target)
			slog.Info("building", "target", target, "os", goos, "arch", goarch, "version", version)
			return build.GoBuild(out, pkg, build.GoBuildOpts{
				Version:       version,
				InjectVersion: target == "twi",
				ConfigPackage: configPackage,
				EnableCgo:     target == "twi",
				Arch:          goarch,
				OS:            goos,
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "twi", "binary to build: twi or dev")
	cmd.Flags().StringVar(&version, "version", "latest", "version injected into the binary")
	cmd.Flags().StringVar(&goos, "os", runtime.GOOS, "os to build for")
	cmd.Flags().StringVar(&goarch, "arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().StringVar(&cross, "cross", "", "os/arch to cross-compile for inside the build image")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not use the docker build cache")
	return cmd
}
