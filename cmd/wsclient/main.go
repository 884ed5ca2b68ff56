// Manual client for the notification socket. Point it at a running server,
// pass real init data, and watch claim notifications stream in.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

func main() {
	url := flag.String("url", "ws://localhost:8888/api/v1/notifications/ws", "notification socket url")
	initData := flag.String("init-data", "", "telegram init data for the Authorization header")
	flag.Parse()

	header := http.Header{}
	header.Add("Authorization", "Telegram "+*initData)

	conn, _, err := websocket.DefaultDialer.Dial(*url, header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			log.Println("read error:", err)
			return
		}
		log.Printf("Received:\n%s\n", p)
	}
}
