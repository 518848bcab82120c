package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Host         string   `name:"host" default:"localhost" help:"Upstream host"`
	Port         string   `name:"port" default:"8080"`
	DataDir      string   `name:"data-dir" required:"true"`
	DBSize       uint32   `name:"receiver-state-db-size" default:"1024"`
	ReportEvery  uint32   `name:"report-every" default:"10000"`
	MaxQueueSize uint32   `name:"max-queue-size" default:"10000"`
	Blacklist    []string `name:"blacklist-actions"`
	Debug        bool     `name:"debug"`
}

func TestDefaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, []string{"--data-dir", "/tmp/x"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host != "localhost" || cfg.Port != "8080" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.DBSize != 1024 || cfg.ReportEvery != 10000 || cfg.MaxQueueSize != 10000 {
		t.Errorf("numeric defaults not applied: %+v", cfg)
	}
}

func TestRequiredMissing(t *testing.T) {
	var cfg testConfig
	if err := Load(&cfg, nil); err == nil {
		t.Error("missing data-dir should fail")
	}
}

func TestINIThenFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	ini := "# receiver config\nhost = upstream.example\nport = 9090\ndata-dir = /var/lib/chronicle\nreceiver-state-db-size = 2048\nblacklist-actions = eosio:onblock, spam:post\n"
	if err := os.WriteFile(path, []byte(ini), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var cfg testConfig
	err := Load(&cfg, []string{"--config", path, "--port", "7777"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host != "upstream.example" {
		t.Errorf("host = %q", cfg.Host)
	}
	if cfg.Port != "7777" {
		t.Errorf("flag should override INI, port = %q", cfg.Port)
	}
	if cfg.DBSize != 2048 {
		t.Errorf("db size = %d", cfg.DBSize)
	}
	if len(cfg.Blacklist) != 2 || cfg.Blacklist[1] != "spam:post" {
		t.Errorf("blacklist = %v", cfg.Blacklist)
	}
}

func TestStrictINIRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	os.WriteFile(path, []byte("data-dir = /x\nno-such-key = 1\n"), 0644)

	var cfg testConfig
	err := LoadWithOptions(&cfg, []string{"--config", path}, &LoadOptions{
		ConfigFlag: "config",
		StrictINI:  true,
	})
	if err == nil {
		t.Error("unknown key should fail in strict mode")
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "yes", "1", "on", "TRUE"} {
		if !ParseBool(s) {
			t.Errorf("ParseBool(%q) should be true", s)
		}
	}
	for _, s := range []string{"false", "no", "0", "off", ""} {
		if ParseBool(s) {
			t.Errorf("ParseBool(%q) should be false", s)
		}
	}
}
