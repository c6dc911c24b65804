package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tabletally/client"
)

// The relay treats game state as opaque; this client is the collaborator
// that gives it a shape. It mirrors the tracker's model: a set of players
// with life totals and creatures.
type creature struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	BasePower     int    `json:"basePower"`
	BaseToughness int    `json:"baseToughness"`
	PowerMod      int    `json:"powerMod"`
	ToughnessMod  int    `json:"toughnessMod"`
}

type player struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Life      int        `json:"life"`
	Creatures []creature `json:"creatures"`
}

type gameState struct {
	NumPlayers int      `json:"numPlayers"`
	Players    []player `json:"players"`
}

func main() {
	server := flag.String("server", "ws://localhost:8080/ws", "relay websocket URL")
	statePath := flag.String("state", defaultStatePath(), "reconnect token database")
	solo := flag.Bool("solo", false, "run without a relay; state stays local")
	flag.Parse()

	var agent *client.Agent
	if *solo {
		agent = client.NewSolo()
	} else {
		store, err := client.OpenTokenStore(*statePath)
		if err != nil {
			log.Fatalf("Failed to open token store: %v", err)
		}
		defer store.Close()

		agent = client.New(*server, store)
	}

	agent.OnStateUpdated(func(snapshot json.RawMessage) {
		var gs gameState
		if err := json.Unmarshal(snapshot, &gs); err != nil {
			return
		}
		fmt.Println()
		printState(&gs)
		fmt.Print("> ")
	})

	agent.Start()
	switch agent.Phase() {
	case client.PhaseActive:
		fmt.Printf("Rejoined room %s\n", agent.RoomCode())
	case client.PhaseWaiting:
		fmt.Printf("Rejoined room %s, waiting for the host to start\n", agent.RoomCode())
	}

	fmt.Println("Commands: create | join CODE | start N | life PLAYER DELTA | show | leave | quit")
	repl(agent)
}

func repl(agent *client.Agent) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}

		switch fields[0] {
		case "create":
			code, err := agent.CreateRoom()
			if err != nil {
				fmt.Println("create failed:", err)
				break
			}
			fmt.Printf("Room %s created. Share the code, then 'start N'.\n", code)

		case "join":
			if len(fields) != 2 {
				fmt.Println("usage: join CODE")
				break
			}
			snapshot, err := agent.JoinRoom(fields[1])
			if err != nil {
				fmt.Println("join failed:", err)
				break
			}
			if snapshot == nil {
				fmt.Println("Joined. Waiting for the host to start the game.")
			} else {
				fmt.Println("Joined a game in progress.")
				show(agent)
			}

		case "start":
			n := 2
			if len(fields) == 2 {
				n, _ = strconv.Atoi(fields[1])
			}
			if n < 2 || n > 4 {
				fmt.Println("player count must be 2-4")
				break
			}
			gs := newGame(n)
			agent.StartSession(marshalState(gs))
			printState(gs)

		case "life":
			if len(fields) != 3 {
				fmt.Println("usage: life PLAYER DELTA")
				break
			}
			id, _ := strconv.Atoi(fields[1])
			delta, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Println("usage: life PLAYER DELTA")
				break
			}
			gs := currentState(agent)
			if gs == nil || id < 0 || id >= len(gs.Players) {
				fmt.Println("no such player")
				break
			}
			gs.Players[id].Life += delta
			agent.ApplyLocalChange(marshalState(gs))
			printState(gs)

		case "show":
			show(agent)

		case "leave":
			agent.LeaveSession()
			fmt.Println("Left the session.")

		case "quit":
			agent.Close()
			return

		default:
			fmt.Println("unknown command:", fields[0])
		}

		fmt.Print("> ")
	}
}

func newGame(n int) *gameState {
	gs := &gameState{NumPlayers: n}
	for i := 0; i < n; i++ {
		gs.Players = append(gs.Players, player{
			ID:        i,
			Name:      fmt.Sprintf("Player %d", i+1),
			Life:      20,
			Creatures: []creature{},
		})
	}
	return gs
}

func currentState(agent *client.Agent) *gameState {
	snapshot := agent.State()
	if snapshot == nil {
		return nil
	}
	var gs gameState
	if err := json.Unmarshal(snapshot, &gs); err != nil {
		return nil
	}
	return &gs
}

func marshalState(gs *gameState) json.RawMessage {
	data, err := json.Marshal(gs)
	if err != nil {
		log.Fatalf("Failed to marshal game state: %v", err)
	}
	return data
}

func show(agent *client.Agent) {
	gs := currentState(agent)
	if gs == nil {
		fmt.Println("No game in progress.")
		return
	}
	printState(gs)
}

func printState(gs *gameState) {
	for _, p := range gs.Players {
		fmt.Printf("  %-10s %3d life", p.Name, p.Life)
		if len(p.Creatures) > 0 {
			names := make([]string, len(p.Creatures))
			for i, c := range p.Creatures {
				names[i] = fmt.Sprintf("%s %d/%d", c.Name, c.BasePower+c.PowerMod, c.BaseToughness+c.ToughnessMod)
			}
			fmt.Printf("  [%s]", strings.Join(names, ", "))
		}
		fmt.Println()
	}
}

func defaultStatePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "tabletally", "session.db")
}
