package uci

import (
	"testing"
	"time"

	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"

	"github.com/stretchr/testify/assert"
)

func TestScoreFromInfoLine(t *testing.T) {
	line := "info depth 1 seldepth 3 multipv 1 score cp 869 nodes 83 nps 83000 tbhits 0 time 1 pv a4e8 f7f6"
	score := ScoreFromInfoLine(line)
	assert.True(t, score.HasValue())
	assert.InDelta(t, 8.69, score.Value(), 0.0001)
}

func TestScoreFromInfoLineNegative(t *testing.T) {
	score := ScoreFromInfoLine("info depth 4 score cp -35 pv e7e5")
	assert.InDelta(t, -0.35, score.Value(), 0.0001)
}

func TestScoreFromInfoLineMate(t *testing.T) {
	score := ScoreFromInfoLine("info depth 31 seldepth 2 multipv 1 score mate 1 nodes 670 pv a4e8")
	assert.Equal(t, MateEval, score.Value())

	score = ScoreFromInfoLine("info depth 31 seldepth 2 multipv 1 score mate -1 nodes 670 pv a4e8")
	assert.Equal(t, -MateEval, score.Value())
}

func TestScoreFromInfoLineLastOccurrenceWins(t *testing.T) {
	score := ScoreFromInfoLine("info score cp 10 string refined score cp 25")
	assert.InDelta(t, 0.25, score.Value(), 0.0001)
}

func TestScoreFromInfoLineAbsent(t *testing.T) {
	assert.True(t, ScoreFromInfoLine("info depth 1 nodes 20").IsEmpty())
	assert.True(t, ScoreFromInfoLine("info score cp garbage").IsEmpty())
}

func TestParseBestMove(t *testing.T) {
	move, ponder := ParseBestMove("bestmove e2e4 ponder e7e5")
	assert.Equal(t, "e2e4", move)
	assert.Equal(t, "e7e5", ponder.Value())

	move, ponder = ParseBestMove("bestmove g1f3")
	assert.Equal(t, "g1f3", move)
	assert.True(t, ponder.IsEmpty())

	move, _ = ParseBestMove("bestmove (none)")
	assert.Equal(t, NullMove, move)

	move, _ = ParseBestMove("bestmove")
	assert.Equal(t, NullMove, move)
}

func TestNodesFromInfoLine(t *testing.T) {
	nodes := NodesFromInfoLine("info depth 14 score cp 133 nodes 46884 nps 390700 pv b7e4")
	assert.Equal(t, int64(46884), nodes.Value())

	assert.True(t, NodesFromInfoLine("info depth 1 score cp 0").IsEmpty())
}

func TestGoCommand(t *testing.T) {
	assert.Equal(t, "go movetime 300",
		goCommand(SearchRequest{MoveTime: 300 * time.Millisecond}))
	assert.Equal(t, "go depth 3",
		goCommand(SearchRequest{Depth: Some(3)}))
	assert.Equal(t, "go movetime 1000 depth 2",
		goCommand(SearchRequest{MoveTime: time.Second, Depth: Some(2)}))
}
