// stubengine is a deterministic stand-in for a real UCI engine: it speaks
// just enough of the protocol to smoke-test the client without Minerva or
// Stockfish installed. It shuffles pawns one rank forward, cycling through
// the files.
package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
)

type File int
type Rank int

func (f File) str() string {
	return [8]string{
		"a", "b", "c", "d", "e", "f", "g", "h",
	}[f]
}
func (r Rank) str() string {
	return [8]string{
		"1", "2", "3", "4", "5", "6", "7", "8",
	}[r]
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, string(debug.Stack()))
		}
	}()

	var file File = 0
	var rank Rank = 1

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := scanner.Text()
		switch {
		case input == "uci":
			fmt.Println("id name minerva-stub")
			fmt.Println("id author Mihnea-Teodor Stoica")
			fmt.Println("uciok")
		case input == "isready":
			fmt.Println("readyok")
		case strings.HasPrefix(input, "go"):
			move := fmt.Sprintf("%s%s%s%s", file.str(), rank.str(), file.str(), (rank + 1).str())
			fmt.Printf("info depth 1 score cp 0 nodes 1 pv %s\n", move)
			fmt.Printf("bestmove %s\n", move)
			file = (file + 1) % 8
		case input == "quit":
			return
		}
	}
}
