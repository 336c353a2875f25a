package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bookflow/pkg/conditions"
	"bookflow/pkg/models"
)

func evaluateCmd() *cobra.Command {
	var conditionsFile, bookingFile string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a condition tree against a booking without starting the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd.OutOrStdout(), conditionsFile, bookingFile)
		},
	}

	cmd.Flags().StringVar(&conditionsFile, "conditions", "", "Path to a JSON array of condition groups")
	cmd.Flags().StringVar(&bookingFile, "booking", "", "Path to a JSON booking")
	_ = cmd.MarkFlagRequired("conditions")
	_ = cmd.MarkFlagRequired("booking")

	return cmd
}

// runEvaluate prints the field errors of an invalid tree, or the per-group breakdown of a valid one.
func runEvaluate(out io.Writer, conditionsFile, bookingFile string) error {
	var groups []conditions.Group
	if err := readJSON(conditionsFile, &groups); err != nil {
		return err
	}

	var booking models.Booking
	if err := readJSON(bookingFile, &booking); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if err := conditions.Validate(groups, "conditions"); err != nil {
		if encErr := enc.Encode(map[string]interface{}{"valid": false, "errors": err}); encErr != nil {
			return encErr
		}
		return fmt.Errorf("invalid conditions: %w", err)
	}

	evaluator, err := conditions.NewEvaluator()
	if err != nil {
		return err
	}
	defer evaluator.Close()

	explanation := evaluator.Explain(conditions.Normalize(groups), conditions.NewBookingResolver(&booking))
	return enc.Encode(explanation)
}

func readJSON(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
