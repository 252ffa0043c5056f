package executor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/modelpush/ipc"
)

// ServeRunner answers Process requests on r/w using ex. It is the other end
// of Process and returns nil when r reaches EOF.
//
// The runner owns its own scratch buffer sized by the prepare request.
func ServeRunner(ctx context.Context, r io.Reader, w io.Writer, ex Executor) error {
	var model Model
	defer func() {
		if model != nil {
			_ = model.Close()
		}
	}()

	for {
		var req ipc.Request
		if err := ipc.ReadMessage(r, &req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch req.Op {
		case ipc.OpPrepare:
			if model != nil {
				_ = model.Close()
				model = nil
			}
			var resp ipc.PrepareResponse
			m, err := ex.Prepare(ctx, req.Artifact, make([]byte, req.ScratchSize))
			if err != nil {
				resp.Error = err.Error()
			} else {
				model = m
				resp.Ready = true
				resp.InputTensors = m.InputTensors()
				resp.OutputTensors = m.OutputTensors()
			}
			if err := ipc.WriteMessage(w, &resp); err != nil {
				return err
			}

		case ipc.OpRun:
			var resp ipc.RunResponse
			if model == nil {
				resp.Error = "no prepared artifact"
			} else if stats, err := model.Run(ctx); err != nil {
				resp.Error = err.Error()
			} else {
				resp.Stats = stats
			}
			if err := ipc.WriteMessage(w, &resp); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown runner op %q", req.Op)
		}
	}
}
