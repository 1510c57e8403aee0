package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ctxview/internal/config"
)

// settings is the effective configuration of one command: flags override
// ctxview.toml, which overrides built-in defaults.
type settings struct {
	cfg *config.Config

	window       int
	showContext  bool
	contextTypes []string
	color        bool
	maxWidth     int
	maxDiags     int
	jobs         int
	quiet        bool
	timings      bool
	metrics      bool
	ui           uiMode
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	root := cmd.Root()
	flags := root.PersistentFlags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Discover(configPath, wd)
	if err != nil {
		return nil, err
	}
	st := &settings{
		cfg:          cfg,
		window:       cfg.Engine.WindowSize,
		showContext:  cfg.View.ShowContext,
		contextTypes: cfg.View.ContextTypes,
		maxWidth:     cfg.Output.MaxWidth,
	}

	colorFlag, err := flags.GetString("color")
	if err != nil {
		return nil, fmt.Errorf("failed to get color flag: %w", err)
	}
	if st.color, err = readColor(colorFlag, flags.Changed("color"), cfg.Output.Color); err != nil {
		return nil, err
	}
	color.NoColor = !st.color

	if flags.Changed("window") {
		if st.window, err = flags.GetInt("window"); err != nil {
			return nil, fmt.Errorf("failed to get window flag: %w", err)
		}
		if st.window < 0 {
			return nil, fmt.Errorf("--window must not be negative")
		}
	}
	if st.maxDiags, err = flags.GetInt("max-diagnostics"); err != nil {
		return nil, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if st.jobs, err = flags.GetInt("jobs"); err != nil {
		return nil, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if st.quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if st.timings, err = flags.GetBool("timings"); err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if st.metrics, err = flags.GetBool("metrics"); err != nil {
		return nil, fmt.Errorf("failed to get metrics flag: %w", err)
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return nil, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if st.ui, err = readUIMode(uiValue); err != nil {
		return nil, err
	}
	return st, nil
}

// showContextAll is the --show-context value used when the flag has no argument.
const showContextAll = "*"

// applyShowContext reads the optional --show-context[=T1,T2] flag of cmd.
func (st *settings) applyShowContext(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("show-context") {
		return nil
	}
	value, err := cmd.Flags().GetString("show-context")
	if err != nil {
		return fmt.Errorf("failed to get show-context flag: %w", err)
	}
	switch value = strings.TrimSpace(value); value {
	case "false", "off":
		st.showContext = false
		st.contextTypes = nil
		return nil
	case showContextAll, "", "true", "on":
		st.showContext = true
		st.contextTypes = nil
		return nil
	}
	st.showContext = true
	st.contextTypes = st.contextTypes[:0:0]
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			st.contextTypes = append(st.contextTypes, name)
		}
	}
	return nil
}

func addShowContextFlag(cmd *cobra.Command) {
	cmd.Flags().String("show-context", "", "show fields of active context spans, optionally only of the listed types (T1,T2)")
	cmd.Flags().Lookup("show-context").NoOptDefVal = showContextAll
}
