package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	getType   string
	getPrefix string
)

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Resolve parameter values from the activated configuration",
	Long: `Resolve one key, or list every key matching --prefix. Values resolve
through the activated container, then the defaults container, then the
per-type static default.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVar(&getType, "type", "string",
		"value type: string, bool, long, double, bytes")
	getCmd.Flags().StringVar(&getPrefix, "prefix", "",
		"list all keys with this prefix instead of resolving one key")
	rootCmd.AddCommand(getCmd)
}

func runGet(_ *cobra.Command, args []string) error {
	container, engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = container.Shutdown() }()

	if len(args) == 0 {
		for _, key := range engine.GetKeysByPrefix(getPrefix) {
			fmt.Printf("%s=%s\n", key, engine.GetString(key))
		}
		return nil
	}

	key := args[0]
	switch getType {
	case "string":
		fmt.Println(engine.GetString(key))
	case "bool":
		fmt.Println(engine.GetBoolean(key))
	case "long":
		fmt.Println(engine.GetLong(key))
	case "double":
		fmt.Println(engine.GetDouble(key))
	case "bytes":
		fmt.Printf("%x\n", engine.GetByteArray(key))
	default:
		return fmt.Errorf("unknown type %q (valid: string, bool, long, double, bytes)", getType)
	}
	return nil
}
