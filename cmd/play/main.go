// play runs a single engine search on a position and prints what came
// back: progress lines, the chosen move, and the evaluation.
//
//	play <engine-path> [fen] [movetime-ms] [verbose] [profile]
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/MihneaTeodorStoica/Minerva/internal/game"
	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
	"github.com/MihneaTeodorStoica/Minerva/internal/uci"

	"github.com/davecgh/go-spew/spew"
	"github.com/notnil/chess"
	"github.com/pkg/profile"
)

func main() {
	args := os.Args[1:]

	if Contains(args, "profile") {
		p := profile.Start(profile.ProfilePath("data/play"))
		defer p.Stop()
	}
	verbose := Contains(args, "verbose")
	args = FilterSlice(args, func(arg string) bool {
		return arg != "profile" && arg != "verbose"
	})

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: play <engine-path> [fen] [movetime-ms] [verbose] [profile]")
		os.Exit(1)
	}

	enginePath := args[0]
	fen := chess.NewGame().Position().String()
	moveTime := time.Second

	if len(args) > 1 {
		fen = args[1]
	}
	if len(args) > 2 {
		ms, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad movetime:", args[2])
			os.Exit(1)
		}
		moveTime = time.Duration(ms) * time.Millisecond
	}

	logger := Logger(&SilentLogger)
	if verbose {
		logger = FuncLogger(func(s string) {
			fmt.Print("engine: ", s)
			if len(s) == 0 || s[len(s)-1] != '\n' {
				fmt.Println()
			}
		})
	}

	client := uci.NewClient(enginePath, uci.WithLogger(logger))
	defer client.Stop()

	var err Error
	if err = client.Start(); !IsNil(err) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err = client.NewGame(); !IsNil(err) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	result, err := client.Search(uci.SearchRequest{
		Fen:      fen,
		MoveTime: moveTime,
		OnInfo: func(line string) {
			fmt.Println(line)
		},
	})
	if !IsNil(err) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if verbose {
		fmt.Print(spew.Sdump(result))
	}

	if result.Failed {
		fmt.Println("search failed, no move")
		os.Exit(1)
	}

	fmt.Println("bestmove:", result.Move)
	if result.Eval.HasValue() {
		fmt.Printf("eval: %+.2f\n", result.Eval.Value())
	}

	fenOption, fenErr := chess.FEN(fen)
	if fenErr == nil {
		position := chess.NewGame(fenOption).Position()
		if _, verr := game.ValidateMove(position, result.Move); !IsNil(verr) {
			fmt.Println("warning: move failed validation against the given position")
		}
	}
}
