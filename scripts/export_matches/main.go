package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/ludus_arena/internal/config"
	"github.com/mroshb/ludus_arena/internal/database"
	"github.com/mroshb/ludus_arena/internal/reports"
)

func main() {
	arenaID := flag.String("arena", "", "arena id")
	serverID := flag.String("server", "", "server id")
	limit := flag.Int("limit", 500, "maximum number of matches")
	out := flag.String("out", "", "output file (default matches_<arena>_<date>.xlsx)")
	flag.Parse()

	if *arenaID == "" || *serverID == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("matches_%s_%s.xlsx", *arenaID, time.Now().UTC().Format("20060102"))
	}
	file, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := reports.NewMatchHistoryExporter(db).Export(ctx, *arenaID, *serverID, *limit, file)
	if err != nil {
		log.Fatal("export failed:", err)
	}

	fmt.Printf("Exported %d matches to %s\n", n, path)
}
