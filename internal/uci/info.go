package uci

import (
	"strconv"
	"strings"

	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
)

// MateEval is the sentinel magnitude for forced-mate scores, in pawns,
// signed by which side is winning.
const MateEval = 1000.0

// ScoreFromInfoLine extracts the evaluation from a progress line, in pawns
// from the mover's perspective. When a line carries several score fields
// the last one wins.
func ScoreFromInfoLine(line string) Optional[float64] {
	fields := strings.Fields(line)
	score := Empty[float64]()

	for i := 0; i+2 < len(fields); i++ {
		if fields[i] != "score" {
			continue
		}
		n, err := strconv.Atoi(fields[i+2])
		if err != nil {
			continue
		}
		switch fields[i+1] {
		case "cp":
			score = Some(float64(n) / 100.0)
		case "mate":
			if n >= 0 {
				score = Some(MateEval)
			} else {
				score = Some(-MateEval)
			}
		}
	}
	return score
}

// ParseBestMove returns the move and optional ponder token from a bestmove
// line. Engines that have no move ("bestmove (none)") map to NullMove.
func ParseBestMove(line string) (string, Optional[string]) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		return NullMove, Empty[string]()
	}

	move := fields[1]
	if move == "(none)" || move == "none" {
		move = NullMove
	}

	ponder := Empty[string]()
	for i := 2; i+1 < len(fields); i++ {
		if fields[i] == "ponder" {
			ponder = Some(fields[i+1])
		}
	}
	return move, ponder
}

// NodesFromInfoLine extracts the node count, for telemetry.
func NodesFromInfoLine(line string) Optional[int64] {
	fields := strings.Fields(line)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "nodes" {
			if n, err := strconv.ParseInt(fields[i+1], 10, 64); err == nil {
				return Some(n)
			}
		}
	}
	return Empty[int64]()
}
