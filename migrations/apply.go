package migrations

import (
	"context"
	"fmt"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
)

// Apply registers the embedded migrations for dialect on client and runs
// them. dialect accepts the sqlstore driver names as well.
func Apply(ctx context.Context, client *persistence.Client, dialect string) error {
	if client == nil {
		return fmt.Errorf("migrations: persistence client is required")
	}
	target := NormalizeDialect(dialect)
	if target == "" {
		return fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	_, err := Register(ctx, func(_ context.Context, registered string, _ string, fsys fs.FS) error {
		if registered != target {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, WithDialects(target))
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: apply %s: %w", target, err)
	}
	return nil
}
