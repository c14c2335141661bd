package main

import (
	"flag"
	"os"

	"cwsweep/internal/dashboard"
	"cwsweep/internal/logging"
	"cwsweep/internal/results"
)

func main() {
	outDir := flag.String("out", "build", "Directory for rendered dashboards")
	flag.Parse()

	log, _ := logging.New("info", "text")
	cfg, _ := results.GreptimeConfigFromEnv()
	if err := dashboard.Render(*outDir, cfg); err != nil {
		log.Error("dashboard render failed", "err", err)
		os.Exit(1)
	}
	log.Info("dashboards rendered", "dir", *outDir, "cell_table", cfg.CellTable, "flow_table", cfg.FlowTable)
}
