// Package statemachine is a guarded finite state machine.
//
// Transitions are keyed by source state and event. Several transitions may share a key;
// the first one whose guards all pass wins, so registration order sets priority. Actions
// run before the state changes and abort the transition on error.
//
//	sm := statemachine.MustNew(idle,
//	    statemachine.WithTransition(idle, listening, listen),
//	    statemachine.WithTransition(listening, done, callback,
//	        statemachine.WithGuard(stateMatches),
//	        statemachine.WithAction(logTransition),
//	    ),
//	)
//	if err := sm.Fire(ctx, listen, nil); err != nil {
//	    return err
//	}
//
// pkg/flow layers single-attempt sign-in bookkeeping on top of it.
package statemachine
