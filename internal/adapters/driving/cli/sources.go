package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered data sources",
	RunE:  runSourcesList,
}

var sourcesDescribeCmd = &cobra.Command{
	Use:   "describe <source>",
	Short: "Show a source's descriptor metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesDescribe,
}

func init() {
	sourcesCmd.AddCommand(sourcesDescribeCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	if registry == nil {
		return errors.New("pipeline not configured")
	}

	names := registry.ListRegistered()
	if len(names) == 0 {
		cmd.Println("No sources registered.")
		return nil
	}

	for _, name := range names {
		_, configured := sourceConfigs[name]
		if configured {
			cmd.Printf("%s (configured)\n", name)
		} else {
			cmd.Printf("%s (no configuration)\n", name)
		}
	}
	return nil
}

func runSourcesDescribe(cmd *cobra.Command, args []string) error {
	if registry == nil {
		return errors.New("pipeline not configured")
	}

	name := args[0]
	cfg, ok := sourceConfigs[name]
	if !ok {
		return fmt.Errorf("source %q not configured", name)
	}

	connector, err := registry.Create(name, cfg)
	if err != nil {
		return fmt.Errorf("creating connector: %w", err)
	}
	defer connector.Close()

	desc := connector.Describe()
	formats := make([]string, len(desc.Formats))
	for i, f := range desc.Formats {
		formats[i] = string(f)
	}

	cmd.Printf("Name:                %s\n", desc.Name)
	cmd.Printf("Description:         %s\n", desc.Description)
	cmd.Printf("Formats:             %s\n", strings.Join(formats, ", "))
	cmd.Printf("Spatial coverage:    %s\n", desc.SpatialCoverage)
	cmd.Printf("Temporal resolution: %s\n", desc.TemporalResolution)
	cmd.Printf("Documentation:       %s\n", desc.DocumentationURL)
	return nil
}
