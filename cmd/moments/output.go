package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// textWriter prints human-readable output.
type textWriter struct {
	w io.Writer
}

func (t textWriter) printf(format string, args ...any) {
	fmt.Fprintf(t.w, format, args...)
}

// render writes v as JSON or YAML when --output asks for it, and calls
// text otherwise.
func render(cmd *cobra.Command, v any, text func(w textWriter)) error {
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		text(textWriter{w: out})
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// stamp formats an epoch-millisecond timestamp for display.
func stamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
