package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	c := Load()
	if c.AppPort != "8080" {
		t.Errorf("AppPort default: got %q", c.AppPort)
	}
	if c.LedgerAccuracy != 1 || c.LedgerDayOffset != -10_800 {
		t.Errorf("ledger defaults: accuracy=%d offset=%d", c.LedgerAccuracy, c.LedgerDayOffset)
	}
	if c.LedgerMaxBatch != 32 || c.LedgerMaxDurationDays != 3650 {
		t.Errorf("ledger bounds: batch=%d duration=%d", c.LedgerMaxBatch, c.LedgerMaxDurationDays)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate on defaults: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_ACCURACY", "100")
	t.Setenv("LEDGER_DAY_OFFSET", "0")
	t.Setenv("LEDGER_MAX_BATCH", "8")
	t.Setenv("AMOUNT_SCALE", "2")

	c := Load()
	if c.LedgerAccuracy != 100 {
		t.Errorf("LEDGER_ACCURACY: got %d", c.LedgerAccuracy)
	}
	if c.LedgerDayOffset != 0 {
		t.Errorf("LEDGER_DAY_OFFSET: got %d", c.LedgerDayOffset)
	}
	if c.LedgerMaxBatch != 8 {
		t.Errorf("LEDGER_MAX_BATCH: got %d", c.LedgerMaxBatch)
	}
	if c.AmountScale != 2 {
		t.Errorf("AMOUNT_SCALE: got %d", c.AmountScale)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
app_port: "9090"
mysql:
  host: db.internal
ledger:
  accuracy: 50
  max_batch: 16
  sweep_cron: "0 3 * * *"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LEDGER_ACCURACY", "100") // file wins over env

	c := Load()
	if c.AppPort != "9090" {
		t.Errorf("app_port overlay: got %q", c.AppPort)
	}
	if c.MySQLHost != "db.internal" {
		t.Errorf("mysql host overlay: got %q", c.MySQLHost)
	}
	if c.LedgerAccuracy != 50 {
		t.Errorf("accuracy overlay: got %d", c.LedgerAccuracy)
	}
	if c.LedgerMaxBatch != 16 {
		t.Errorf("max_batch overlay: got %d", c.LedgerMaxBatch)
	}
	if c.SweepCron != "0 3 * * *" {
		t.Errorf("sweep_cron overlay: got %q", c.SweepCron)
	}
	// untouched fields keep env/default values
	if c.MySQLPort != "3306" {
		t.Errorf("mysql port should keep default, got %q", c.MySQLPort)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	c := Load()
	c.LedgerMaxBatch = 64
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for oversized max batch")
	}
	c = Load()
	c.MySQLPort = "not-a-port"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for bad mysql port")
	}
}

func TestMySQLDSN(t *testing.T) {
	c := &Config{
		MySQLHost: "localhost", MySQLPort: "3306",
		MySQLDB: "ledger", MySQLUser: "u", MySQLPass: "p",
	}
	want := "u:p@tcp(localhost:3306)/ledger?multiStatements=true&parseTime=true&charset=utf8mb4,utf8"
	if got := c.MySQLDSN(); got != want {
		t.Errorf("DSN: got %q want %q", got, want)
	}
}
