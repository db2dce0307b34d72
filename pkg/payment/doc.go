// Package payment contains the core of the SDK: the validated payment context
// for one attempt, the payment-sheet collaborator interface, and the session
// state machine that sequences backend calls and sheet callbacks while
// guaranteeing exactly-once resolution of the caller's pending request.
//
// # Flow
//
// A payment attempt moves through five states:
//
//	Idle -> Initializing -> AwaitingAuthorization -> Authorizing -> Finalizing -> Idle
//
// StartPayment builds a Context and initializes the payment on the backend
// (unless the caller's backend already did). The native payment sheet is then
// presented; the user either authorizes (producing a wallet token that is sent
// to the backend for authorization) or cancels. The sheet is closed with a
// status before the caller's continuation is resolved, so a modal presentation
// is never left blocking the caller's UI.
package payment
