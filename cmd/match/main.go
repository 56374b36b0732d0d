// match plays two engines against each other over a series of games,
// alternating colors, and prints the score line at the end.
//
//	match <engine-a> <engine-b> [games] [movetime-ms]
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/MihneaTeodorStoica/Minerva/internal/game"
	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
	"github.com/MihneaTeodorStoica/Minerva/internal/uci"

	"github.com/dustin/go-humanize"
	"github.com/notnil/chess"
	"github.com/schollz/progressbar/v3"
)

const maxPliesPerGame = 400

func main() {
	args := os.Args[1:]
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: match <engine-a> <engine-b> [games] [movetime-ms]")
		os.Exit(1)
	}

	pathA, pathB := args[0], args[1]
	games := 2
	moveTime := 100 * time.Millisecond

	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 1 {
			fmt.Fprintln(os.Stderr, "bad game count:", args[2])
			os.Exit(1)
		}
		games = n
	}
	if len(args) > 3 {
		ms, err := strconv.Atoi(args[3])
		if err != nil || ms < 1 {
			fmt.Fprintln(os.Stderr, "bad movetime:", args[3])
			os.Exit(1)
		}
		moveTime = time.Duration(ms) * time.Millisecond
	}

	engineA := uci.NewClient(pathA, uci.WithLogger(&SilentLogger))
	engineB := uci.NewClient(pathB, uci.WithLogger(&SilentLogger))
	defer engineA.Stop()
	defer engineB.Stop()

	policy := game.DefaultPolicy()
	policy.MoveTime = moveTime

	var winsA, winsB, draws, fallbacks int
	var totalNodes int64

	observer := func(result uci.SearchResult) {
		// the last node count in a cycle is cumulative for that search
		searched := int64(0)
		for _, line := range result.Lines {
			if nodes := uci.NodesFromInfoLine(line); nodes.HasValue() {
				searched = nodes.Value()
			}
		}
		totalNodes += searched
	}

	bar := progressbar.Default(int64(games), "games")
	started := time.Now()

	for i := 0; i < games; i++ {
		white, black := engineA, engineB
		if i%2 == 1 {
			white, black = black, white
		}

		session := game.NewSession(white, black,
			game.WithPolicy(policy),
			game.WithSessionLogger(&SilentLogger),
			game.WithSearchObserver(observer))

		if err := session.NewGame(); !IsNil(err) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		for session.Outcome() == chess.NoOutcome && len(session.Game().Moves()) < maxPliesPerGame {
			_, usedFallback, err := session.EngineMove()
			if !IsNil(err) {
				if ErrorIs(err, game.ErrNoLegalFallback) {
					break
				}
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if usedFallback {
				fallbacks++
			}
		}

		switch session.Outcome() {
		case chess.WhiteWon:
			if white == engineA {
				winsA++
			} else {
				winsB++
			}
		case chess.BlackWon:
			if black == engineA {
				winsA++
			} else {
				winsB++
			}
		default:
			draws++
		}

		_ = bar.Add(1)
	}

	elapsed := time.Since(started).Round(time.Second)
	fmt.Printf("\n%v: +%d  %v: +%d  =%d  (%d games in %v)\n",
		pathA, winsA, pathB, winsB, draws, games, elapsed)
	fmt.Println("nodes searched:", humanize.Comma(totalNodes))
	if fallbacks > 0 {
		fmt.Println("fallback moves substituted:", fallbacks)
	}
}
