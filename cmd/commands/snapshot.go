package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"persona-rag/internal/app"
)

var (
	snapshotFile string
	snapshotKey  string
)

func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the chromem collection",
		Long: `Write the chromem collection to a single file, or load one back.
With --key (32 bytes) the file is AES-GCM encrypted. Defaults to
vector_store.chromem.encryption_key.

Examples:
  persona-rag snapshot export --file backup.gob.gz
  persona-rag snapshot import --file backup.gob.gz --key "$KEY"`,
	}
	cmd.PersistentFlags().StringVar(&snapshotFile, "file", "", "Snapshot file path")
	cmd.PersistentFlags().StringVar(&snapshotKey, "key", "", "32-byte encryption key")

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Export the collection to --file",
		Args:  cobra.NoArgs,
		RunE:  runSnapshot(true),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Import --file into the collection",
		Args:  cobra.NoArgs,
		RunE:  runSnapshot(false),
	})
	return cmd
}

func runSnapshot(export bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if snapshotFile == "" {
			return errors.New("--file is required")
		}
		key := snapshotKey
		if key == "" {
			key = cfg.VectorStore.Chromem.EncryptionKey
		}
		if key != "" && len(key) != 32 {
			return fmt.Errorf("--key must be 32 bytes, got %d", len(key))
		}

		ctx := context.Background()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Chromem == nil {
			return fmt.Errorf("snapshots need the chromem vector store, configured %q", cfg.VectorStore.Type)
		}

		if export {
			if err := a.Chromem.Export(snapshotFile, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", snapshotFile)
			return nil
		}
		if err := a.Chromem.Import(snapshotFile, key); err != nil {
			return err
		}
		n, _ := a.Index.Count(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s, %d entries\n", snapshotFile, n)
		return nil
	}
}
