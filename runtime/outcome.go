package runtime

import (
	"fmt"

	"github.com/pulto-io/sift/types"
)

// Exit codes per harness contract (matches the Python harness).
const (
	ExitCodeCompleted    = 0 // cell completed, cell_result emitted
	ExitCodeError        = 1 // cell raised, cell_result emitted
	ExitCodeCrash        = 2 // harness crash
	ExitCodeInvalidInput = 3 // invalid job input
)

// DetermineOutcome classifies a cell run from the harness exit code and
// the terminal frame. Exit codes are authoritative for the outcome
// category; the terminal frame supplies message, error type, and stack.
func DetermineOutcome(cellIndex, exitCode int, hasTerminal bool, terminal *types.CellResultFrame) *types.CellOutcome {
	switch exitCode {
	case ExitCodeCompleted:
		if hasTerminal && terminal.Status == types.CellStatusCompleted {
			return &types.CellOutcome{
				CellIndex: cellIndex,
				Status:    types.CellStatusCompleted,
				Figures:   terminal.Figures,
			}
		}
		// Exit 0 without terminal is an anomaly, treat as crash
		return &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusCrash,
			Message:   "harness exited cleanly without terminal frame",
		}

	case ExitCodeError:
		if hasTerminal && terminal.Status == types.CellStatusError {
			return &types.CellOutcome{
				CellIndex: cellIndex,
				Status:    types.CellStatusError,
				Message:   terminal.Message,
				ErrorType: terminal.ErrorType,
			}
		}
		return &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusCrash,
			Message:   "harness exited with error without terminal frame",
		}

	case ExitCodeCrash:
		outcome := &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusCrash,
			Message:   "harness crashed",
		}
		if hasTerminal && terminal.Message != "" {
			outcome.Message = terminal.Message
			outcome.ErrorType = terminal.ErrorType
		}
		return outcome

	case ExitCodeInvalidInput:
		return &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusCrash,
			Message:   "harness rejected invalid input",
		}

	default:
		return &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusCrash,
			Message:   fmt.Sprintf("harness exited with unexpected code %d", exitCode),
		}
	}
}
