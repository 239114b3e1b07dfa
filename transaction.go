package redish

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Transaction describes an optimistic transaction, executed with
// Conn.Transact.
type Transaction struct {
	// Name identifies the transaction in errors and logs.
	Name string

	// RetryDelay is the delay before a retry, interpreted according to
	// Policy.
	RetryDelay time.Duration

	// MaxRetries is the maximum number of retries after the first attempt
	// was aborted.
	MaxRetries int

	// Policy is the policy used to compute the delay before a retry.
	Policy RetryPolicy

	// BackOff, if set, is used to compute the delay before a retry instead
	// of RetryDelay and Policy. The retry budget is still MaxRetries.
	BackOff backoff.BackOff

	// Prepare is called at the start of each attempt, before MULTI. It
	// typically sends WATCH for the keys used by the transaction and reads
	// the values needed to prepare the queued commands.
	Prepare func(c *Conn) error

	// Queue is called after MULTI, to send the commands executed
	// atomically by EXEC.
	Queue func(c *Conn) error
}

// Transact executes the optimistic transaction tx. Each attempt calls
// tx.Prepare, sends MULTI, calls tx.Queue and sends EXEC. If EXEC returns
// nil, because a watched key was modified, the transaction is retried
// after a delay, up to tx.MaxRetries times, after which a
// *TransactionFailedError is returned.
//
// On success it returns the replies of the queued commands, decoded as
// text. A nil element is a nil reply, or an array reply. If the
// transaction was committed but some queued commands failed, the replies
// are returned along with an *ExecError holding the error of each failed
// command. Such a transaction is not retried.
//
// Any other error stops the transaction immediately and is returned
// without retry. If tx.Queue fails, DISCARD is sent before returning.
// The context is used for the commands sent by Transact and for the
// delay between attempts.
func (c *Conn) Transact(ctx context.Context, tx Transaction) ([]*string, error) {
	bo := tx.BackOff
	if bo == nil {
		bo = tx.Policy.BackOff(tx.RetryDelay)
	}
	maxRetries := tx.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	bo = backoff.WithMaxRetries(bo, uint64(maxRetries))
	bo.Reset()

	for attempt := 1; ; attempt++ {
		res, err := c.transactOnce(ctx, tx)
		if err != nil {
			return res, err
		}
		if res != nil {
			return res, nil
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			c.logger.Warn("transaction failed",
				zap.String("transaction", tx.Name),
				zap.Int("attempts", attempt))
			return nil, &TransactionFailedError{Name: tx.Name, Retries: attempt - 1}
		}

		c.logger.Debug("transaction aborted, retrying",
			zap.String("transaction", tx.Name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// transactOnce executes a single attempt of the transaction. It returns
// a nil slice and a nil error if the transaction was aborted.
func (c *Conn) transactOnce(ctx context.Context, tx Transaction) ([]*string, error) {
	if tx.Prepare != nil {
		if err := tx.Prepare(c); err != nil {
			return nil, err
		}
	}

	if _, err := c.DoContext(ctx, "MULTI"); err != nil {
		return nil, err
	}

	if tx.Queue != nil {
		if err := tx.Queue(c); err != nil {
			if _, derr := c.DoContext(ctx, "DISCARD"); derr != nil {
				err = multierror.Append(err, derr)
			}
			return nil, err
		}
	}

	v, err := c.roundTrip(ctx, "EXEC", nil, decodeExec)
	if v == nil {
		return nil, err
	}
	res := v.([]*string)
	if ee, ok := err.(*ExecError); ok {
		ee.Name = tx.Name
		c.logger.Debug("transaction committed with errors",
			zap.String("transaction", tx.Name),
			zap.Error(err))
	}
	return res, err
}

// decodeExec decodes the reply of EXEC as a list of optional text
// elements. It always uses the default options so that the result type
// does not depend on the connection's options. Error elements are
// collected in an *ExecError instead of failing the decode.
func decodeExec(r *Reply) (interface{}, error) {
	var o DecodeOptions
	if r == nil || r.Kind != KindArray {
		return o.decode(r, ListOf(Text))
	}

	res := make([]*string, len(r.Elems))
	var errs []error
	for i, e := range r.Elems {
		if e != nil && e.Kind == KindError {
			if errs == nil {
				errs = make([]error, len(r.Elems))
			}
			errs[i] = ServerError(e.Str)
			continue
		}
		ev, err := o.decodeElem(e, Text)
		if err != nil {
			return nil, err
		}
		res[i] = ev.Interface().(*string)
	}
	if errs != nil {
		return res, &ExecError{Results: res, Errors: errs}
	}
	return res, nil
}

func (c *Conn) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}
