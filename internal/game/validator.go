package game

import (
	"errors"
	"fmt"

	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
	"github.com/MihneaTeodorStoica/Minerva/internal/uci"

	"github.com/notnil/chess"
)

var (
	ErrInvalidMove     = errors.New("engine returned an unusable move")
	ErrNoLegalFallback = errors.New("no legal moves available")
)

// ValidateMove checks an engine move token before it touches the game:
// structural parse, origin piece owned by the side to move, membership in
// the legal-move set. The ownership check catches stale results slipping
// through after a restart mid-cycle.
func ValidateMove(position *chess.Position, token string) (*chess.Move, Error) {
	if token == uci.NullMove || len(token) < 4 {
		return nil, Wrap(fmt.Errorf("%w: %q", ErrInvalidMove, token))
	}

	from, ok := squareFromToken(token[0:2])
	if !ok {
		return nil, Wrap(fmt.Errorf("%w: bad origin in %q", ErrInvalidMove, token))
	}
	if _, ok := squareFromToken(token[2:4]); !ok {
		return nil, Wrap(fmt.Errorf("%w: bad destination in %q", ErrInvalidMove, token))
	}

	piece := position.Board().Piece(from)
	if piece == chess.NoPiece || piece.Color() != position.Turn() {
		return nil, Wrap(fmt.Errorf("%w: %v does not own the piece moved by %q",
			ErrInvalidMove, position.Turn(), token))
	}

	notation := chess.UCINotation{}
	for _, move := range position.ValidMoves() {
		if notation.Encode(position, move) == token {
			return move, NilError
		}
	}
	return nil, Wrap(fmt.Errorf("%w: %q is not legal here", ErrInvalidMove, token))
}

func squareFromToken(s string) (chess.Square, bool) {
	if len(s) != 2 {
		return 0, false
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, false
	}
	return chess.Square(rank*8 + file), true
}
