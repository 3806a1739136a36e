package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"tiergate/config"
	"tiergate/core/state"
	"tiergate/native/whitelist"
	"tiergate/observability/logging"
	"tiergate/rpc"
	"tiergate/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TIERGATE_ENV"))
	logger := logging.Setup("tiergated", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	engine := whitelist.NewEngine(state.NewManager(db))
	engine.SetMerkleFallback(cfg.AllowMerkleFallback)
	engine.SetStrictSnapshots(cfg.StrictSnapshots)

	server := rpc.NewServer(engine, logger)

	logger.Info("tiergate node initialised and running",
		"network", cfg.NetworkName,
		"rpc", cfg.RPCAddress,
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server terminated", "error", err)
		os.Exit(1)
	}
}
