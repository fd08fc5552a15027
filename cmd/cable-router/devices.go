package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/audio/wasapi"
	"github.com/breeze-rmm/cablerouter/internal/catalog"
)

var devicesFormat string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List active playback devices",
	Long: `List the active render endpoints. The default device and the first
device that would be picked as the virtual cable are marked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if devicesFormat != "text" && devicesFormat != "yaml" {
			return fmt.Errorf("unknown format %q (want text or yaml)", devicesFormat)
		}
		_, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		entries, err := listDevices(wasapi.NewSubsystem())
		if err != nil {
			return err
		}
		return printDevices(os.Stdout, entries, devicesFormat)
	},
}

func init() {
	devicesCmd.Flags().StringVar(&devicesFormat, "format", "text", "output format: text or yaml")
}

func listDevices(sub audio.Subsystem) ([]catalog.Entry, error) {
	if err := sub.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize audio subsystem: %w", err)
	}
	defer sub.Uninitialize()

	enum, err := sub.NewEnumerator()
	if err != nil {
		return nil, fmt.Errorf("create device enumerator: %w", err)
	}
	defer enum.Release()

	return catalog.New(enum).List(audio.Render)
}

var (
	defaultColor = color.New(color.FgGreen, color.Bold)
	cableColor   = color.New(color.FgCyan)
)

// printDevices writes entries as YAML or as one line per device. Only the
// first cable match is marked, mirroring which device routing would use.
func printDevices(w io.Writer, entries []catalog.Entry, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "no active playback devices")
		return nil
	}

	cableMarked := false
	for _, e := range entries {
		line := e.Name
		var tags []string
		if e.Default {
			tags = append(tags, "default")
		}
		isCable := e.Cable && !cableMarked
		if isCable {
			tags = append(tags, "cable")
			cableMarked = true
		}
		for _, t := range tags {
			line += " [" + t + "]"
		}

		switch {
		case e.Default:
			defaultColor.Fprintln(w, line)
		case isCable:
			cableColor.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
		if e.ID != "" {
			fmt.Fprintf(w, "    %s\n", e.ID)
		}
	}
	return nil
}
