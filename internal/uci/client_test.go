package uci

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MihneaTeodorStoica/Minerva/internal/binary"
	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"

	"github.com/stretchr/testify/assert"
)

// writeEngineScript drops a /bin/sh fake engine into a temp dir, so these
// tests exercise real pipes and a real child process without depending on
// an installed engine.
func writeEngineScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755)
	assert.NoError(t, err)
	return path
}

const wellBehavedEngine = `
while read line; do
  set -- $line
  case "$1" in
    uci) echo "id name fakefish"; echo "uciok" ;;
    isready) echo "readyok" ;;
    go) echo "info depth 1 seldepth 1 score cp 20 nodes 100 pv e2e4"; echo "bestmove e2e4 ponder e7e5" ;;
    quit) exit 0 ;;
  esac
done
`

const silentSearchEngine = `
while read line; do
  set -- $line
  case "$1" in
    uci) echo "uciok" ;;
    isready) echo "readyok" ;;
    quit) exit 0 ;;
  esac
done
`

func newTestClient(path string, options ...ClientOption) *Client {
	options = append([]ClientOption{
		WithLogger(&SilentLogger),
		WithHandshakeTimeout(time.Second),
		WithSafetyMargin(100 * time.Millisecond),
		WithStopGrace(150 * time.Millisecond),
	}, options...)
	return NewClient(path, options...)
}

const startFen = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestSearchHappyPath(t *testing.T) {
	client := newTestClient(writeEngineScript(t, wellBehavedEngine))
	defer client.Stop()

	err := client.Start()
	assert.True(t, IsNil(err))

	err = client.NewGame()
	assert.True(t, IsNil(err))

	result, err := client.Search(SearchRequest{
		Fen:      startFen,
		MoveTime: 300 * time.Millisecond,
	})
	assert.True(t, IsNil(err))
	assert.False(t, result.Failed)
	assert.Equal(t, "e2e4", result.Move)
	assert.Equal(t, "e7e5", result.Ponder.Value())
	assert.InDelta(t, 0.20, result.Eval.Value(), 0.0001)
	assert.Len(t, result.Lines, 1)
}

func TestSearchDeadlineAndStopGrace(t *testing.T) {
	client := newTestClient(writeEngineScript(t, silentSearchEngine))
	defer client.Stop()

	err := client.Start()
	assert.True(t, IsNil(err))

	budget := 200 * time.Millisecond
	start := time.Now()
	result, err := client.Search(SearchRequest{Fen: startFen, MoveTime: budget})
	elapsed := time.Since(start)

	assert.True(t, IsNil(err))
	assert.True(t, result.Failed)
	assert.Equal(t, NullMove, result.Move)
	assert.True(t, result.Eval.IsEmpty())

	// budget + safety margin + stop grace, plus scheduling slack
	assert.GreaterOrEqual(t, elapsed, budget)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestSearchBoundedAgainstChattyEngine(t *testing.T) {
	// the worst engine: on go it streams info forever and stops reading
	// stdin, so it never sees stop or quit
	script := `
while read line; do
  set -- $line
  case "$1" in
    uci) echo "uciok" ;;
    isready) echo "readyok" ;;
    go) while true; do echo "info depth 1 score cp 7 pv e2e4"; sleep 0.01; done ;;
    quit) exit 0 ;;
  esac
done
`
	client := newTestClient(writeEngineScript(t, script))
	defer client.Stop()

	err := client.Start()
	assert.True(t, IsNil(err))

	start := time.Now()
	result, err := client.Search(SearchRequest{Fen: startFen, MoveTime: 100 * time.Millisecond})
	elapsed := time.Since(start)

	assert.True(t, IsNil(err))
	assert.True(t, result.Failed)
	assert.Equal(t, NullMove, result.Move)
	assert.NotEmpty(t, result.Lines)

	// budget + margin + grace, then the post-search sync times out and
	// replaces the wedged process; nothing here is unbounded
	assert.Less(t, elapsed, 5*time.Second)
	assert.True(t, client.IsAlive())
}

func TestSearchSurvivesEngineCrash(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "crashed-once")
	script := fmt.Sprintf(`
while read line; do
  set -- $line
  case "$1" in
    uci) echo "uciok" ;;
    isready) echo "readyok" ;;
    go) if [ ! -f %q ]; then touch %q; exit 1; else echo "bestmove e2e4"; fi ;;
    quit) exit 0 ;;
  esac
done
`, marker, marker)

	client := newTestClient(writeEngineScript(t, script))
	defer client.Stop()

	err := client.Start()
	assert.True(t, IsNil(err))

	// first cycle: the engine dies right after go
	result, err := client.Search(SearchRequest{Fen: startFen, MoveTime: 200 * time.Millisecond})
	assert.True(t, IsNil(err))
	assert.True(t, result.Failed)
	assert.Equal(t, NullMove, result.Move)

	// the coordinator restarted it; the retry succeeds
	assert.True(t, client.IsAlive())
	result, err = client.Search(SearchRequest{Fen: startFen, MoveTime: 200 * time.Millisecond})
	assert.True(t, IsNil(err))
	assert.False(t, result.Failed)
	assert.Equal(t, "e2e4", result.Move)
}

func TestSearchSurvivesExternalKill(t *testing.T) {
	client := newTestClient(writeEngineScript(t, silentSearchEngine))
	defer client.Stop()

	err := client.Start()
	assert.True(t, IsNil(err))

	process := client.Process()
	go func() {
		time.Sleep(100 * time.Millisecond)
		process.Kill()
	}()

	result, err := client.Search(SearchRequest{Fen: startFen, MoveTime: 2 * time.Second})
	assert.True(t, IsNil(err))
	assert.True(t, result.Failed)
	assert.True(t, client.IsAlive())
}

func TestSearchDrainsStaleOutput(t *testing.T) {
	// noisy engine: chatter on startup and on every reset
	script := `
echo "info string boot chatter"
while read line; do
  set -- $line
  case "$1" in
    uci) echo "uciok" ;;
    isready) echo "readyok" ;;
    ucinewgame) echo "info string resetting" ;;
    go) echo "info depth 1 score cp 5 pv d2d4"; echo "bestmove d2d4" ;;
    quit) exit 0 ;;
  esac
done
`
	client := newTestClient(writeEngineScript(t, script))
	defer client.Stop()

	err := client.Start()
	assert.True(t, IsNil(err))
	err = client.NewGame()
	assert.True(t, IsNil(err))

	result, err := client.Search(SearchRequest{Fen: startFen, MoveTime: 300 * time.Millisecond})
	assert.True(t, IsNil(err))
	assert.False(t, result.Failed)

	// only this cycle's progress lines made it into the result
	assert.Equal(t, []string{"info depth 1 score cp 5 pv d2d4"}, result.Lines)
}

func TestOptionsReplayedAfterRestart(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "options.log")
	script := fmt.Sprintf(`
while read line; do
  set -- $line
  case "$1" in
    uci) echo "uciok" ;;
    isready) echo "readyok" ;;
    setoption) echo "$line" >> %q ;;
    quit) exit 0 ;;
  esac
done
`, logPath)

	client := newTestClient(writeEngineScript(t, script))
	defer client.Stop()

	err := client.Start()
	assert.True(t, IsNil(err))

	err = client.SetOption("Hash", 64)
	assert.True(t, IsNil(err))
	err = client.SetOption("Threads", 2)
	assert.True(t, IsNil(err))

	process := client.Process()
	process.Kill()
	for client.IsAlive() {
		time.Sleep(10 * time.Millisecond)
	}

	// a dead engine makes NewGame restart, which must replay every option
	err = client.NewGame()
	assert.True(t, IsNil(err))

	applied, readErr := os.ReadFile(logPath)
	assert.NoError(t, readErr)
	lines := FilterSlice(strings.Split(strings.TrimSpace(string(applied)), "\n"),
		func(s string) bool { return s != "" })

	assert.Equal(t, []string{
		"setoption name Hash value 64",
		"setoption name Threads value 2",
		"setoption name Hash value 64",
		"setoption name Threads value 2",
	}, lines)
}

func TestHandshakeTimeout(t *testing.T) {
	script := `
while read line; do
  case "$line" in
    quit) exit 0 ;;
  esac
done
`
	client := NewClient(writeEngineScript(t, script),
		WithLogger(&SilentLogger),
		WithHandshakeTimeout(200*time.Millisecond))
	defer client.Stop()

	err := client.Start()
	assert.True(t, ErrorIs(err, ErrProtocolTimeout))
}

func TestStartMissingEngine(t *testing.T) {
	client := NewClient("/no/such/engine", WithLogger(&SilentLogger))

	err := client.Start()
	assert.True(t, ErrorIs(err, binary.ErrEngineNotFound))
	assert.False(t, client.IsAlive())
}

func TestTruncatedFenKnob(t *testing.T) {
	client := NewClient("unused", WithTruncatedFEN())
	assert.Equal(t,
		"position fen rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -",
		client.positionCommand(startFen))

	client = NewClient("unused")
	assert.Equal(t, "position fen "+startFen, client.positionCommand(startFen))
}

func TestSetOptionBeforeStartIsRecorded(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "options.log")
	script := fmt.Sprintf(`
while read line; do
  set -- $line
  case "$1" in
    uci) echo "uciok" ;;
    isready) echo "readyok" ;;
    setoption) echo "$line" >> %q ;;
    quit) exit 0 ;;
  esac
done
`, logPath)

	client := newTestClient(writeEngineScript(t, script))
	defer client.Stop()

	err := client.SetOption("MultiPV", 1)
	assert.True(t, IsNil(err))

	err = client.Start()
	assert.True(t, IsNil(err))

	applied, readErr := os.ReadFile(logPath)
	assert.NoError(t, readErr)
	assert.Equal(t, "setoption name MultiPV value 1", strings.TrimSpace(string(applied)))
}
