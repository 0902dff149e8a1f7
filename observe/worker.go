package observe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/observation-tools/observation-tools/model"
)

type messageKind int

const (
	msgExecution messageKind = iota
	msgObservations
	msgShutdown
)

// uploaderMessage is one of the three message kinds the worker consumes:
// an execution creation, a slice of observation submissions, or the
// shutdown request.
type uploaderMessage struct {
	kind      messageKind
	execution *model.Execution
	batch     []*pendingObservation
}

// pendingObservation is a buffered submission together with its
// completion handle.
type pendingObservation struct {
	obs      *model.Observation
	payloads []model.Payload
	send     *Send
}

// runWorker is the single background task that multiplexes the submission
// queue and a flush ticker into batched HTTP uploads. It exits on the
// shutdown message after flushing the remaining buffer; closing done is
// the signal that every accepted submission has resolved.
func (c *Client) runWorker() {
	defer close(c.s.done)

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	var buffer []*pendingObservation

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		batch := buffer
		buffer = nil
		c.uploadBatch(batch)
	}

	for {
		select {
		case <-ticker.C:
			flush()

		case msg := <-c.s.ch:
			switch msg.kind {
			case msgExecution:
				// Executions skip the buffer so that the server usually has
				// the execution row before its observations arrive.
				if err := c.transport.createExecution(context.Background(), msg.execution); err != nil {
					c.logger.Error("failed to upload execution",
						zap.String("execution_id", msg.execution.ID.String()),
						zap.Error(err))
				}

			case msgObservations:
				buffer = append(buffer, msg.batch...)
				if len(buffer) >= c.cfg.BatchSize {
					flush()
				}

			case msgShutdown:
				flush()
				return
			}
		}
	}
}

// uploadBatch issues one HTTP upload per distinct execution id in the
// batch and resolves every completion handle with its upload's outcome.
// Failed batches are dropped: errors surface through the handles, never
// by aborting the worker.
func (c *Client) uploadBatch(batch []*pendingObservation) {
	groups := make(map[model.ExecutionID][]*pendingObservation)
	order := make([]model.ExecutionID, 0, 1)
	for _, p := range batch {
		id := p.obs.ExecutionID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], p)
	}

	for _, executionID := range order {
		group := groups[executionID]
		err := c.transport.uploadObservations(context.Background(), executionID, group)
		if err != nil {
			c.logger.Error("failed to upload observations",
				zap.String("execution_id", executionID.String()),
				zap.Int("count", len(group)),
				zap.Error(err))
		}
		for _, p := range group {
			p.send.complete(err)
		}
	}
}
