package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
)

// Small diagnostic client: connects to a running backend and prints every
// event it receives, one line per event.
func main() {
	endpoint := flag.String("url", "ws://localhost:4000/ws", "websocket endpoint")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*endpoint, nil)
	if err != nil {
		fmt.Printf("dial %s failed: %v\n", *endpoint, err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", *endpoint)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				fmt.Printf("read error: %v\n", err)
				return
			}

			var event struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(message, &event); err != nil {
				fmt.Printf("?? %s\n", message)
				continue
			}
			fmt.Printf("%-12s %s\n", event.Type, event.Data)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-done:
	}
}
