// Command reingest_helper scans the data dir for extract files the service
// has not successfully ingested and asks a running instance to queue them.
// Useful after restoring extracts from a backup or fixing a bad file.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"crimemap/config"
	_ "modernc.org/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	files := listExtracts(cfg.DataDir)
	if len(files) == 0 {
		log.Println("no extract files found")
		return
	}

	statuses, err := loadLedger(cfg.DBPath)
	if err != nil {
		log.Fatalf("load ledger: %v", err)
	}

	pending := filterPending(files, statuses)
	log.Printf("found %d extracts, %d not ingested", len(files), len(pending))
	if len(pending) == 0 {
		return
	}

	baseURL := strings.TrimSuffix(os.Getenv("SERVICE_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost" + cfg.HTTPPort
	}
	log.Printf("requesting ingest from %s", baseURL)

	enqueue(baseURL, pending)
}

func listExtracts(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("scan data dir: %v", err)
		return nil
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		out = append(out, entry.Name())
	}
	return out
}

func loadLedger(dbPath string) (map[string]string, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	statuses := make(map[string]string)
	rows, err := db.Query(`SELECT filename, status FROM ingested_files`)
	if err != nil {
		// A fresh DB has no ledger yet; everything is pending.
		return statuses, nil
	}
	defer rows.Close()
	for rows.Next() {
		var name, status string
		if err := rows.Scan(&name, &status); err == nil {
			statuses[name] = status
		}
	}
	return statuses, nil
}

func filterPending(files []string, statuses map[string]string) []string {
	var pending []string
	for _, f := range files {
		if statuses[f] != "done" {
			pending = append(pending, f)
		}
	}
	return pending
}

func enqueue(baseURL string, files []string) {
	client := &http.Client{}
	var wg sync.WaitGroup
	slots := make(chan struct{}, 8)
	for _, f := range files {
		wg.Add(1)
		slots <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-slots }()
			endpoint := fmt.Sprintf("%s/api/ingest?file=%s", baseURL, url.QueryEscape(name))
			req, _ := http.NewRequest(http.MethodPost, endpoint, nil)
			resp, err := client.Do(req)
			if err != nil {
				log.Printf("enqueue %s: %v", name, err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode >= 300 {
				log.Printf("enqueue %s: %s", name, resp.Status)
				return
			}
			log.Printf("queued %s", name)
		}(f)
	}
	wg.Wait()
}
