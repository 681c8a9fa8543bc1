package internal

import (
	"path/filepath"
	"testing"

	"github.com/iksnae/agent-stream/testutil"
)

func TestOpenDatabase(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "new database in nested directory",
			setup: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "a", "b", "history.db")
			},
			wantErr: false,
		},
		{
			name: "existing database",
			setup: func(t *testing.T) string {
				path := filepath.Join(testutil.CreateTempDir(t), "history.db")
				db, err := OpenDatabase(path)
				if err != nil {
					t.Fatalf("OpenDatabase() setup error = %v", err)
				}
				db.Close()
				return path
			},
			wantErr: false,
		},
		{
			name: "parent is a file",
			setup: func(t *testing.T) string {
				dir := testutil.CreateTempDir(t)
				file := testutil.WriteEventLog(t, dir, "plain", "x")
				return filepath.Join(file, "history.db")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tt.setup(t)
			db, err := OpenDatabase(dbPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("OpenDatabase() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			defer db.Close()

			var n int
			if err := db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
				t.Errorf("messages table missing: %v", err)
			}
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	for i := 0; i < 2; i++ {
		if err := Migrate(db); err != nil {
			t.Fatalf("Migrate() run %d error = %v", i+1, err)
		}
	}
}
