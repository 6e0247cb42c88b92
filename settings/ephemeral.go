package settings

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Ephemeral returns a document pointing at a fresh, isolated SQLite
// repository path under dir (os.TempDir when empty). The file is not
// created; the repository provisions it on first open. Each call yields a
// distinct path, so environments built from distinct Ephemeral documents
// never share state.
func Ephemeral(dir string) *Document {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "sz_"+uuid.NewString()+".db")
	return New(SQLiteConnection(path))
}
