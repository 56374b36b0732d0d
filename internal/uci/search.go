package uci

import (
	"fmt"
	"strings"
	"time"

	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
)

// NullMove is the sentinel a failed search returns in place of a move.
const NullMove = "0000"

// SearchRequest describes one search: a full board position plus a time
// budget, a depth bound, or both.
type SearchRequest struct {
	Fen      string
	MoveTime time.Duration
	Depth    Optional[int]

	// OnInfo, when set, observes each progress line as it arrives.
	OnInfo func(line string)
}

// SearchResult is immutable once returned. Move is either a move token or
// NullMove, never empty.
type SearchResult struct {
	Move   string
	Ponder Optional[string]
	Lines  []string
	Eval   Optional[float64]
	Failed bool
}

// Search runs one full request/response cycle:
//
//	liveness check -> pre-search sync -> position + go -> collection loop
//	under deadline -> post-search sync.
//
// A Failed outcome is not an error: the caller decides between retry and
// fallback. The returned error covers only failures to keep a process
// running at all.
func (c *Client) Search(request SearchRequest) (SearchResult, Error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	result := SearchResult{Move: NullMove, Failed: true}

	if request.MoveTime <= 0 && request.Depth.IsEmpty() {
		return result, Errorf("search request needs a movetime or a depth bound")
	}

	if !c.aliveLocked() {
		if err := c.restartLocked(); !IsNil(err) {
			return result, err
		}
	}

	// After this the queue is empty and the engine idle: nothing stale can
	// be misattributed to this cycle.
	if err := c.syncLocked(); !IsNil(err) {
		return result, err
	}

	if err := c.process.Send(c.positionCommand(request.Fen)); !IsNil(err) {
		return result, c.recoverLocked(err)
	}
	if err := c.process.Send(goCommand(request)); !IsNil(err) {
		return result, c.recoverLocked(err)
	}

	budget := request.MoveTime
	if budget <= 0 {
		budget = c.maxSearchTime
	}
	deadline := time.Now().Add(budget + c.safetyMargin)
	stopSent := false

	for {
		// checked before every read, so a stream of info lines cannot
		// outlast the budget
		if time.Now().After(deadline) {
			if !stopSent {
				stopSent = true
				deadline = time.Now().Add(c.stopGrace)
				// best effort; a death here is caught next iteration
				_ = c.process.Send("stop")
			} else {
				c.logger.Println("engine ignored stop, abandoning search")
				break
			}
		}

		line := c.process.Output().Next(c.pollInterval)
		if line.HasValue() {
			text := line.Value()

			if strings.HasPrefix(text, "bestmove") {
				move, ponder := ParseBestMove(text)
				if move != NullMove {
					result.Move = move
					result.Ponder = ponder
					result.Failed = false
				}
				break
			}
			if strings.HasPrefix(text, "info") {
				result.Lines = append(result.Lines, text)
				if score := ScoreFromInfoLine(text); score.HasValue() {
					result.Eval = score
				}
				if request.OnInfo != nil {
					request.OnInfo(text)
				}
			}
			continue
		}

		if !c.process.IsAlive() {
			c.logger.Println("engine died mid-search, restarting")
			if err := c.restartLocked(); !IsNil(err) {
				return result, err
			}
			break
		}
	}

	return result, c.syncLocked()
}

func (c *Client) positionCommand(fen string) string {
	if c.truncatedFen {
		fields := strings.Fields(fen)
		if len(fields) > 4 {
			fields = fields[:4]
		}
		fen = strings.Join(fields, " ")
	}
	return "position fen " + fen
}

func goCommand(request SearchRequest) string {
	cmd := "go"
	if request.MoveTime > 0 {
		cmd += fmt.Sprint(" movetime ", request.MoveTime.Milliseconds())
	}
	if request.Depth.HasValue() {
		cmd += fmt.Sprint(" depth ", request.Depth.Value())
	}
	return cmd
}
