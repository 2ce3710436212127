// File: cmd/output.go
package cmd

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// writeResult renders a loop result for the terminal or for machine
// consumption.
func writeResult(out io.Writer, format string, result *schemas.FixLoopResult) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize result: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err

	case "text":
		fmt.Fprintf(out, "run:         %s\n", result.RunID)
		fmt.Fprintf(out, "attempts:    %d\n", len(result.Attempts))
		fmt.Fprintf(out, "terminated:  %s\n", result.TerminationReason)
		fmt.Fprintf(out, "duration:    %dms\n", result.TotalDurationMs)
		if result.Success && result.FinalFix != nil {
			fmt.Fprintf(out, "\nverified fix (confidence %.2f): %s\n\n", result.FinalFix.Confidence, result.FinalFix.Explanation)
			fmt.Fprintln(out, result.FinalFix.Diff)
		} else {
			fmt.Fprintln(out, "\nescalated to human review")
			for _, attempt := range result.Attempts {
				if attempt.MutationResult != nil {
					for _, rec := range attempt.MutationResult.Recommendations {
						fmt.Fprintf(out, "  - %s\n", rec)
					}
				}
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown output format %q; expected text or json", format)
	}
}
