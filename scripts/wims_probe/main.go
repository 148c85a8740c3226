// Command wims_probe checks that the configured WIMS server accepts our
// service identity, and optionally inspects one class. Run it after
// changing WIMS_* settings or after a WIMS upgrade.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wims-bridge-api/internal/wims"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

func main() {
	var (
		activityID int64
		classID    string
		timeout    time.Duration
		verbose    bool
	)

	flag.Int64Var(&activityID, "activity", 0, "Activity id owning the class (required with -class)")
	flag.StringVar(&classID, "class", "", "WIMS class id to inspect")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "Overall probe timeout")
	flag.BoolVar(&verbose, "verbose", false, "Log every request")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		cfg.WIMS.Debug = true
	}

	client := wims.NewClient(cfg.WIMS, logger, nil)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("WIMS probe against %s\n", cfg.WIMS.ServerURL)
	failed := false

	failed = !step("checkident", func() error {
		return client.CheckIdent(ctx)
	}) || failed

	if classID != "" {
		if activityID == 0 {
			log.Fatal("-activity is required when -class is set")
		}
		rcl := fmt.Sprintf("moodle_%d", activityID)

		failed = !step("checkclass "+classID, func() error {
			return client.CheckClass(ctx, classID, rcl, true)
		}) || failed

		failed = !step("listsheets", func() error {
			sheets, err := client.ListSheets(ctx, classID, rcl)
			if err != nil {
				return err
			}
			fmt.Printf("    %d worksheet(s)\n", len(sheets))
			return nil
		}) || failed

		failed = !step("listexams", func() error {
			exams, err := client.ListExams(ctx, classID, rcl)
			if err != nil {
				return err
			}
			fmt.Printf("    %d exam(s)\n", len(exams))
			return nil
		}) || failed
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("All probes passed")
}

func step(name string, fn func() error) bool {
	start := time.Now()
	err := fn()
	if err != nil {
		fmt.Printf("[FAIL] %s (%s)\n    %v\n", name, time.Since(start).Round(time.Millisecond), err)
		return false
	}
	fmt.Printf("[ OK ] %s (%s)\n", name, time.Since(start).Round(time.Millisecond))
	return true
}
