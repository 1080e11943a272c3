package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"intentgate/internal/registry"
)

// registryCmd groups whitelist maintenance commands
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and maintain the entity whitelist",
}

var registryListCmd = &cobra.Command{
	Use:   "list [category]",
	Short: "List canonical names, optionally for one category",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegistryList,
}

var registryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the configured source and report problems",
	Args:  cobra.NoArgs,
	RunE:  runRegistryCheck,
}

var registryInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a sample whitelist YAML file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegistryInit,
}

var registryImportCmd = &cobra.Command{
	Use:   "import <yaml-file> <sqlite-db>",
	Short: "Copy a YAML whitelist into a SQLite registry database",
	Args:  cobra.ExactArgs(2),
	RunE:  runRegistryImport,
}

var registryInitForce bool

func init() {
	registryInitCmd.Flags().BoolVar(&registryInitForce, "force", false, "Overwrite an existing file")

	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryCheckCmd)
	registryCmd.AddCommand(registryInitCmd)
	registryCmd.AddCommand(registryImportCmd)
}

// loadSnapshot fetches the configured source once.
func loadSnapshot(ctx context.Context) (*registry.Snapshot, error) {
	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return nil, err
	}
	if closeSrc != nil {
		defer closeSrc()
	}
	reg := registry.New(src)
	return reg.Refresh(ctx)
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snap, err := loadSnapshot(ctx)
	if err != nil {
		return err
	}

	cats := registry.Categories()
	if len(args) == 1 {
		cat := registry.Category(args[0])
		if !isCategory(cat) {
			return fmt.Errorf("unknown category %q (valid: %v)", args[0], cats)
		}
		cats = []registry.Category{cat}
	}

	out := cmd.OutOrStdout()
	for _, cat := range cats {
		fmt.Fprintf(out, "%s (%d)\n", cat, snap.Count(cat))
		for _, m := range snap.Members(cat) {
			line := "  " + m.Name
			if len(m.Aliases) > 0 {
				line += "  [" + strings.Join(m.Aliases, ", ") + "]"
			}
			if m.Group != "" {
				line += "  @" + m.Group
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func runRegistryCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snap, err := loadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("registry check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "source %s: ok\n", snap.Source())
	for _, cat := range registry.Categories() {
		fmt.Fprintf(out, "  %-15s %d\n", cat, snap.Count(cat))
	}
	if snap.Count(registry.CategoryMachines) == 0 {
		fmt.Fprintln(out, "warning: no machines; every machine query will be rejected")
	}
	return nil
}

func runRegistryInit(cmd *cobra.Command, args []string) error {
	path := cfg.Registry.Path
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !registryInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := registry.WriteCatalog(path, registry.SampleCatalog()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote sample whitelist to %s\n", path)
	return nil
}

func runRegistryImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := registry.NewFileSource(args[0]).Fetch(ctx)
	if err != nil {
		return err
	}
	// Build a snapshot first so a bad catalog never reaches the database.
	if _, err := registry.NewSnapshot(c, 1, "import"); err != nil {
		return fmt.Errorf("catalog rejected: %w", err)
	}

	db, err := registry.OpenSQLiteSource(args[1])
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Import(ctx, c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d machines into %s\n", len(c.Machines), args[1])
	return nil
}

func isCategory(c registry.Category) bool {
	for _, v := range registry.Categories() {
		if v == c {
			return true
		}
	}
	return false
}
