package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	devenv "vhrscraper/dev/env"
	"vhrscraper/internal/config"
	"vhrscraper/internal/db"
	"vhrscraper/pkg/configutil"
)

func CreateReportStore(ctx context.Context) error {
	path, err := devenv.ResolvePath("<dev_state>/reports.db")
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	sqlite, err := db.Open(ctx, path)
	if err != nil {
		return err
	}
	return sqlite.Close()
}

// keeps credentials and the store inside the repository while developing
const configTemplate = `{
	// email: "",
	// password: "",
	cookies_file: "<dev_state>/cookies.txt",
	tokens_file: "<dev_state>/tokens.json",
	dump_dir: "<dev_state>/http",
	min_delay: 2,
	max_delay: 5,
	database: { file: "<dev_state>/reports.db" },
	verbose: true,
}
`

func WriteConfigTemplate() error {
	path := configutil.LocalPath(config.FileName)
	_, err := os.Stat(path)
	if err == nil {
		fmt.Println("local config already exists at", path)
		return nil
	}
	fmt.Println("writing local config to", path)
	return os.WriteFile(path, []byte(configTemplate), 0600)
}

func PrintConfigLocations() {
	slog.Info("live tests read credentials from dev/.state/carfax.json5 ({ email, password, vin }) and are skipped without it, run `go test -v` to see which ones.")
}
