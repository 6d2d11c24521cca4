package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/user/petco2_cvr_go/internal/config"
)

func main() {
	var (
		configPath  = flag.String("config", "", "KEY=VALUE configuration file")
		physPath    = flag.String("phys", "", "physiological data file (time, PETCO2, PETO2, trigger)")
		tr          = flag.Float64("tr", 0, "nominal repetition time in seconds")
		pdfPath     = flag.String("pdf", "", "write a PDF report to this path")
		csvPath     = flag.String("csv", "", "write the calibrated curve as CSV to this path")
		maxDelay    = flag.Float64("max-delay", 0, "largest delay in the report delay sweep, volumes")
		minResponse = flag.Float64("min-response", 3, "smallest acceptable ON block response, mmHg")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "phys":
			cfg.PhysData = *physPath
		case "tr":
			cfg.TR = *tr
		case "pdf":
			cfg.PDFPath = *pdfPath
		case "csv":
			cfg.CSVPath = *csvPath
		case "max-delay":
			cfg.MaxDelay = *maxDelay
		}
	})
	if cfg.PhysData == "" {
		fmt.Fprintln(os.Stderr, "physiological data file is required (-phys or PHYS_DATA)")
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app := NewApp(cfg, *minResponse)
	if _, err := app.Run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
