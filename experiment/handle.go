package experiment

import (
	"context"

	"banditserve/policy"
)

// The methods below are the public handle API: they send a message onto
// the actor's mailbox and block for its reply, honoring ctx cancellation on
// the SEND and the WAIT. Per spec §5, client disconnection cancels the
// caller's wait but never the in-flight handler -- these methods return
// ctx.Err() without retracting the message once it has been accepted onto
// the mailbox.

func (a *Actor) Ping(ctx context.Context) error {
	reply := make(chan struct{})
	if err := a.send(ctx, pingMsg{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) AddArm(ctx context.Context, initialCount uint64, initialReward float64) (policy.ArmId, error) {
	reply := make(chan policy.ArmId, 1)
	if err := a.send(ctx, addArmMsg{initialCount: initialCount, initialReward: initialReward, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case id := <-reply:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (a *Actor) RemoveArm(ctx context.Context, armID policy.ArmId) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, removeArmMsg{armID: armID, reply: reply}); err != nil {
		return err
	}
	return a.waitErr(ctx, reply)
}

func (a *Actor) DisableArm(ctx context.Context, armID policy.ArmId) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, setActiveMsg{armID: armID, active: false, reply: reply}); err != nil {
		return err
	}
	return a.waitErr(ctx, reply)
}

func (a *Actor) EnableArm(ctx context.Context, armID policy.ArmId) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, setActiveMsg{armID: armID, active: true, reply: reply}); err != nil {
		return err
	}
	return a.waitErr(ctx, reply)
}

func (a *Actor) Reset(ctx context.Context) error {
	reply := make(chan struct{})
	if err := a.send(ctx, resetMsg{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) ResetArm(ctx context.Context, armID policy.ArmId, count uint64, cumulativeReward float64) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, resetArmMsg{armID: armID, count: count, cumulativeReward: cumulativeReward, reply: reply}); err != nil {
		return err
	}
	return a.waitErr(ctx, reply)
}

func (a *Actor) Draw(ctx context.Context) (DrawResult, error) {
	reply := make(chan DrawResult, 1)
	if err := a.send(ctx, drawMsg{reply: reply}); err != nil {
		return DrawResult{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return DrawResult{}, ctx.Err()
	}
}

func (a *Actor) Update(ctx context.Context, armID policy.ArmId, reward float64, timestampMS uint64) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, updateMsg{armID: armID, reward: reward, timestampMS: timestampMS, reply: reply}); err != nil {
		return err
	}
	return a.waitErr(ctx, reply)
}

func (a *Actor) UpdateBatch(ctx context.Context, entries []BatchEntry) ([]BatchEntryResult, error) {
	reply := make(chan []BatchEntryResult, 1)
	if err := a.send(ctx, updateBatchMsg{entries: entries, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Actor) Stats(ctx context.Context) (map[policy.ArmId]policy.ArmStatsView, error) {
	reply := make(chan map[policy.ArmId]policy.ArmStatsView, 1)
	if err := a.send(ctx, statsMsg{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown sends Shutdown and waits for the actor to process it (final
// best-effort checkpoint, then stop). It does not wait for Run to return.
func (a *Actor) Shutdown(ctx context.Context) error {
	reply := make(chan struct{})
	if err := a.send(ctx, shutdownMsg{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) send(ctx context.Context, msg any) error {
	select {
	case a.mailbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) waitErr(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
