// Package flow guards interactive sign-in attempts with a small state machine.
//
// A Machine keeps its transition table in a pkg/statemachine machine and holds at most one
// pending Attempt. Begin refuses to start a
// second attempt while one is pending, so a caller waiting on a result is never silently
// replaced by a later caller. Each attempt resolves exactly once, returns the machine to its
// initial state and runs the cleanup functions registered with Defer, whether it succeeded,
// failed or was abandoned by a cancelled context.
//
//	m := flow.New[*auth.User]("google/desktop", StateIdle, transitions)
//	a, err := m.Begin(ctx)
//	if err != nil {
//	    return nil, err // flow.ErrInProgress
//	}
//	a.Defer(srv.Close)
//	_ = a.Fire(EventListen)
//	go waitForCallback(a)
//	return a.Wait()
package flow
