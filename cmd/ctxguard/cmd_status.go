package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:1791", "status API address")
	raw := fs.Bool("json", false, "print raw JSON")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/api/v1/status", *addr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctxguard does not appear to be running at %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading status response: %v\n", err)
		os.Exit(1)
	}

	if *raw {
		fmt.Println(string(body))
		return
	}

	var status struct {
		Running       bool `json:"running"`
		UptimeSeconds int  `json:"uptime_seconds"`
		Current       *struct {
			Timestamp time.Time `json:"timestamp"`
			Score     int       `json:"score"`
			Risk      string    `json:"risk"`
		} `json:"current"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		fmt.Fprintf(os.Stderr, "parsing status response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("running:  %v\n", status.Running)
	fmt.Printf("uptime:   %ds\n", status.UptimeSeconds)
	if status.Current != nil {
		fmt.Printf("risk:     %s (score %d)\n", status.Current.Risk, status.Current.Score)
		fmt.Printf("as of:    %s\n", status.Current.Timestamp.Format(time.RFC3339))
	} else {
		fmt.Println("risk:     no snapshot yet")
	}
}
