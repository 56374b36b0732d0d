package game

import (
	"fmt"
	"time"

	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
	"github.com/MihneaTeodorStoica/Minerva/internal/uci"

	"github.com/notnil/chess"
)

// Policy is the recovery contract around each engine move. A tournament
// setup that prefers failing loudly over degraded play can zero out the
// retries and forbid the fallback.
type Policy struct {
	MoveTime      time.Duration
	Depth         Optional[int]
	Retries       int
	AllowFallback bool
}

func DefaultPolicy() Policy {
	return Policy{
		MoveTime:      250 * time.Millisecond,
		Retries:       1,
		AllowFallback: true,
	}
}

// Session drives one chess game where one or both sides are engines. Each
// color gets its own Client; a shared instance would interleave two
// searches on one process.
type Session struct {
	game     *chess.Game
	engines  map[chess.Color]*uci.Client
	policy   Policy
	logger   Logger
	observer func(uci.SearchResult)
}

type SessionOption func(*Session)

func WithPolicy(policy Policy) SessionOption {
	return func(s *Session) {
		s.policy = policy
	}
}

func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithSearchObserver registers a callback that sees every search result,
// for telemetry.
func WithSearchObserver(observer func(uci.SearchResult)) SessionOption {
	return func(s *Session) {
		s.observer = observer
	}
}

func NewSession(white *uci.Client, black *uci.Client, options ...SessionOption) *Session {
	s := &Session{
		game: chess.NewGame(),
		engines: map[chess.Color]*uci.Client{
			chess.White: white,
			chess.Black: black,
		},
		policy: DefaultPolicy(),
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = &DefaultLogger
	}
	return s
}

func (s *Session) Game() *chess.Game {
	return s.game
}

// SetPolicy swaps the recovery policy mid-session, e.g. when the caller
// changes the thinking time.
func (s *Session) SetPolicy(policy Policy) {
	s.policy = policy
}

func (s *Session) Position() *chess.Position {
	return s.game.Position()
}

func (s *Session) Outcome() chess.Outcome {
	return s.game.Outcome()
}

// NewGame resets the board and tells every engine to forget the previous
// game.
func (s *Session) NewGame() Error {
	s.game = chess.NewGame()
	return s.resetEngines()
}

// SetPositionFEN resets the board to an arbitrary position.
func (s *Session) SetPositionFEN(fen string) Error {
	option, err := chess.FEN(fen)
	if err != nil {
		return Wrap(err)
	}
	s.game = chess.NewGame(option)
	return s.resetEngines()
}

func (s *Session) resetEngines() Error {
	for _, client := range s.engines {
		if client == nil {
			continue
		}
		if err := client.NewGame(); !IsNil(err) {
			return err
		}
	}
	return NilError
}

// PlayUserMove validates and applies a move for the non-engine side.
func (s *Session) PlayUserMove(token string) (*chess.Move, Error) {
	move, err := ValidateMove(s.game.Position(), token)
	if !IsNil(err) {
		return nil, err
	}
	return move, Wrap(s.game.Move(move))
}

// EngineMove asks the engine owning the side to move for one move and
// applies it. The second return is true when the retry budget ran out and
// an arbitrary legal move was substituted to keep the session progressing.
func (s *Session) EngineMove() (*chess.Move, bool, Error) {
	position := s.game.Position()
	legal := position.ValidMoves()
	if len(legal) == 0 {
		return nil, false, Wrap(fmt.Errorf("%w: %v", ErrNoLegalFallback, position.String()))
	}

	client := s.engines[position.Turn()]
	if client == nil {
		return nil, false, Errorf("no engine configured for %v", position.Turn())
	}

	for attempt := 0; attempt <= s.policy.Retries; attempt++ {
		if attempt > 0 {
			s.logger.Println("restarting engine before retry", attempt)
			if err := client.Restart(); !IsNil(err) {
				return nil, false, err
			}
		}

		result, err := client.Search(uci.SearchRequest{
			Fen:      position.String(),
			MoveTime: s.policy.MoveTime,
			Depth:    s.policy.Depth,
		})
		if !IsNil(err) {
			return nil, false, err
		}
		if s.observer != nil {
			s.observer(result)
		}
		if result.Failed {
			s.logger.Println("search failed on attempt", attempt)
			continue
		}

		move, verr := ValidateMove(position, result.Move)
		if !IsNil(verr) {
			s.logger.Println("rejected engine move:", result.Move)
			continue
		}
		if err := Wrap(s.game.Move(move)); !IsNil(err) {
			return nil, false, err
		}
		return move, false, NilError
	}

	if !s.policy.AllowFallback {
		return nil, false, Wrap(fmt.Errorf("%w: retries exhausted", ErrInvalidMove))
	}

	// loud on purpose: a substituted move must never pass for a genuine
	// engine move in the logs
	fallback := legal[0]
	s.logger.Printf("FALLBACK move %v substituted for unusable engine result\n", fallback)
	if err := s.game.Move(fallback); err != nil {
		return nil, false, Wrap(err)
	}
	return fallback, true, NilError
}
