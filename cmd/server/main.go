// server exposes an engine over a websocket: the page sends positions and
// moves, the server streams progress lines and replies with the engine's
// move. One engine process per connection; instances are never shared.
//
//	server <engine-path> [port]
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/MihneaTeodorStoica/Minerva/internal/game"
	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
	"github.com/MihneaTeodorStoica/Minerva/internal/uci"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type UpdateToWeb struct {
	FenString string   `json:"fenString"`
	LastMove  string   `json:"lastMove,omitempty"`
	Eval      *float64 `json:"eval,omitempty"`
	Fallback  bool     `json:"fallback,omitempty"`
	Outcome   string   `json:"outcome,omitempty"`
	Log       string   `json:"log,omitempty"`
}

type MessageFromWeb struct {
	NewFen     *string `json:"newFen"`
	Move       *string `json:"move"`
	MoveTimeMs *int    `json:"moveTimeMs"`
	NewGame    *bool   `json:"newGame"`
}

func (m MessageFromWeb) String() string {
	if m.NewFen != nil {
		return fmt.Sprint("MessageFromWeb NewFen: ", *m.NewFen)
	}
	if m.Move != nil {
		return fmt.Sprint("MessageFromWeb Move: ", *m.Move)
	}
	if m.MoveTimeMs != nil {
		return fmt.Sprint("MessageFromWeb MoveTimeMs: ", *m.MoveTimeMs)
	}
	if m.NewGame != nil {
		return fmt.Sprint("MessageFromWeb NewGame: ", *m.NewGame)
	}
	return "MessageFromWeb unknown"
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, fmt.Sprint(r))
			fmt.Fprintln(os.Stderr, string(debug.Stack()))
		}
	}()

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: server <engine-path> [port]")
		os.Exit(1)
	}
	enginePath := args[0]

	port := 8002
	for _, arg := range args[1:] {
		if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
			port = int(parsed)
		}
	}

	var upgrader = websocket.Upgrader{}

	var ws = func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade:", err)
			return
		}
		defer c.Close()

		var send = func(update UpdateToWeb) {
			bytes, err := json.Marshal(update)
			if err != nil {
				log.Println("update: json marshal:", err)
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, bytes); err != nil {
				log.Println("websocket:", err)
			}
		}

		logger := FuncLogger(func(message string) {
			send(UpdateToWeb{Log: message})
		})

		client := uci.NewClient(enginePath, uci.WithLogger(&SilentLogger))
		defer client.Stop()

		var lastEval *float64
		policy := game.DefaultPolicy()
		session := game.NewSession(client, client,
			game.WithPolicy(policy),
			game.WithSessionLogger(logger),
			game.WithSearchObserver(func(result uci.SearchResult) {
				lastEval = nil
				if result.Eval.HasValue() {
					eval := result.Eval.Value()
					lastEval = &eval
				}
			}))

		if err := client.Start(); !IsNil(err) {
			logger.Println("engine start:", err)
			return
		}

		var engineReply = func() {
			move, usedFallback, err := session.EngineMove()
			if !IsNil(err) {
				if ErrorIs(err, game.ErrNoLegalFallback) {
					send(UpdateToWeb{
						FenString: session.Position().String(),
						Outcome:   session.Outcome().String(),
					})
					return
				}
				logger.Println("engine move:", err)
				return
			}

			update := UpdateToWeb{
				FenString: session.Position().String(),
				LastMove:  move.String(),
				Eval:      lastEval,
				Fallback:  usedFallback,
			}
			if session.Outcome().String() != "*" {
				update.Outcome = session.Outcome().String()
			}
			send(update)
		}

		var handleMessage = func(bytes []byte) {
			var message MessageFromWeb
			if err := json.Unmarshal(bytes, &message); err != nil {
				logger.Println("json unmarshal:", err)
				return
			}
			log.Println("received", message)

			if message.MoveTimeMs != nil {
				policy.MoveTime = time.Duration(*message.MoveTimeMs) * time.Millisecond
				session.SetPolicy(policy)
				return
			}
			if message.NewGame != nil {
				if err := session.NewGame(); !IsNil(err) {
					logger.Println("new game:", err)
					return
				}
				send(UpdateToWeb{FenString: session.Position().String()})
				return
			}
			if message.NewFen != nil {
				if err := session.SetPositionFEN(*message.NewFen); !IsNil(err) {
					logger.Println("set position:", err)
					return
				}
				send(UpdateToWeb{FenString: session.Position().String()})
				return
			}
			if message.Move != nil {
				if _, err := session.PlayUserMove(*message.Move); !IsNil(err) {
					logger.Println("user move:", err)
					return
				}
				send(UpdateToWeb{
					FenString: session.Position().String(),
					LastMove:  *message.Move,
				})
				engineReply()
			}
		}

		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("websocket read:", err)
				break
			}
			handleMessage(message)
		}
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", ws)
	router.PathPrefix("/static").Handler(
		http.StripPrefix("/static", http.FileServer(http.Dir("static"))))

	log.Println("serving at", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%v", port), router); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
