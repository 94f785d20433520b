package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
)

func (cli *CLI) flagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Create, inspect, and evaluate flags",
	}

	cmd.AddCommand(
		cli.flagCreateCommand(),
		cli.flagGetCommand(),
		cli.flagUpdateCommand(),
		cli.flagEnableCommand(),
		cli.flagDisableCommand(),
		cli.flagDeleteCommand(),
		cli.flagEvaluateCommand(),
	)

	return cmd
}

func parseValue(boolFlag, stringFlag, intFlag, floatFlag string) (flagtypes.Value, error) {
	switch {
	case boolFlag != "":
		b, err := strconv.ParseBool(boolFlag)
		if err != nil {
			return flagtypes.Value{}, fmt.Errorf("invalid --bool value %q: %w", boolFlag, err)
		}
		return flagtypes.BoolValue(b), nil
	case stringFlag != "":
		return flagtypes.StringValue(stringFlag), nil
	case intFlag != "":
		n, err := strconv.ParseInt(intFlag, 10, 64)
		if err != nil {
			return flagtypes.Value{}, fmt.Errorf("invalid --int value %q: %w", intFlag, err)
		}
		return flagtypes.IntValue(n), nil
	case floatFlag != "":
		f, err := strconv.ParseFloat(floatFlag, 64)
		if err != nil {
			return flagtypes.Value{}, fmt.Errorf("invalid --float value %q: %w", floatFlag, err)
		}
		return flagtypes.FloatValue(f), nil
	default:
		return flagtypes.Value{}, nil
	}
}

func (cli *CLI) flagCreateCommand() *cobra.Command {
	var (
		kind        string
		state       string
		name        string
		description string
		environment string
		variants    string
		tags        string
		percentage  float64
		hasPercent  bool
		boolVal, stringVal, intVal, floatVal string
	)

	cmd := &cobra.Command{
		Use:   "create <key>",
		Short: "Create a new flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(boolVal, stringVal, intVal, floatVal)
			if err != nil {
				return err
			}

			flag := flagtypes.Flag{
				Key:         args[0],
				Name:        name,
				Description: description,
				Kind:        flagtypes.Kind(kind),
				State:       flagtypes.State(state),
				Value:       value,
				Environment: environment,
			}
			if variants != "" {
				flag.Variants = strings.Split(variants, ",")
			}
			if tags != "" {
				flag.Tags = strings.Split(tags, ",")
			}
			if hasPercent || percentage != 0 {
				flag.Percentage = &percentage
			}

			var entry flagtypes.WithMeta
			if err := cli.api.do("POST", "/v1/flags", flag, &entry); err != nil {
				return err
			}
			return printJSON(entry)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(flagtypes.KindFlagBoolean), "Flag kind: boolean, variant, rollout, segment")
	cmd.Flags().StringVar(&state, "state", string(flagtypes.StateEnabled), "Flag state: enabled, disabled, archived")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&environment, "environment", "", "Environment label")
	cmd.Flags().StringVar(&variants, "variants", "", "Comma-separated variant list")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tag list")
	cmd.Flags().Float64Var(&percentage, "percentage", 0, "Rollout percentage (required for rollout flags)")
	cmd.Flags().StringVar(&boolVal, "bool", "", "Boolean value")
	cmd.Flags().StringVar(&stringVal, "string", "", "String value")
	cmd.Flags().StringVar(&intVal, "int", "", "Integer value")
	cmd.Flags().StringVar(&floatVal, "float", "", "Float value")
	cmd.Flags().BoolVar(&hasPercent, "has-percentage", false, "Set when --percentage should be sent even if 0")

	return cmd
}

func (cli *CLI) flagGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry flagtypes.WithMeta
			if err := cli.api.do("GET", "/v1/flags/"+args[0], nil, &entry); err != nil {
				return err
			}
			return printJSON(entry)
		},
	}
}

func (cli *CLI) flagUpdateCommand() *cobra.Command {
	var boolVal, stringVal, intVal, floatVal string

	cmd := &cobra.Command{
		Use:   "update <key>",
		Short: "Update a flag's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(boolVal, stringVal, intVal, floatVal)
			if err != nil {
				return err
			}
			body := map[string]flagtypes.Value{"value": value}
			var entry flagtypes.WithMeta
			if err := cli.api.do("PUT", "/v1/flags/"+args[0], body, &entry); err != nil {
				return err
			}
			return printJSON(entry)
		},
	}

	cmd.Flags().StringVar(&boolVal, "bool", "", "Boolean value")
	cmd.Flags().StringVar(&stringVal, "string", "", "String value")
	cmd.Flags().StringVar(&intVal, "int", "", "Integer value")
	cmd.Flags().StringVar(&floatVal, "float", "", "Float value")

	return cmd
}

func (cli *CLI) flagEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <key>",
		Short: "Enable a flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry flagtypes.WithMeta
			if err := cli.api.do("POST", "/v1/flags/"+args[0]+"/enable", nil, &entry); err != nil {
				return err
			}
			return printJSON(entry)
		},
	}
}

func (cli *CLI) flagDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <key>",
		Short: "Disable a flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry flagtypes.WithMeta
			if err := cli.api.do("POST", "/v1/flags/"+args[0]+"/disable", nil, &entry); err != nil {
				return err
			}
			return printJSON(entry)
		},
	}
}

func (cli *CLI) flagDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.api.do("DELETE", "/v1/flags/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Printf("flag %s deleted\n", args[0])
			return nil
		},
	}
}

func (cli *CLI) flagEvaluateCommand() *cobra.Command {
	var (
		userID    string
		sessionID string
		attrs     []string
	)

	cmd := &cobra.Command{
		Use:   "evaluate <key>",
		Short: "Evaluate a flag against a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evalCtx := flagtypes.EvaluationContext{Attributes: map[string]string{}}
			if userID != "" {
				evalCtx.UserID = &userID
			}
			if sessionID != "" {
				evalCtx.SessionID = &sessionID
			}
			for _, kv := range attrs {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid --attr %q, expected key=value", kv)
				}
				evalCtx.Attributes[parts[0]] = parts[1]
			}

			var result flagtypes.EvaluationResult
			if err := cli.api.do("POST", "/v1/flags/"+args[0]+"/evaluate", evalCtx, &result); err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "User ID for rollout/targeting evaluation")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "Targeting attribute key=value, repeatable")

	return cmd
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("flagctl: encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
