// Package codeentry implements the multi-slot verification code entry
// controller behind the email verification screen.
//
// A Controller owns N single-digit slots. Hosts forward input events to it
// (OnCellInput, OnCellBackspace, OnCellPaste, OnResendClicked, OnSubmit) and
// render from Snapshot. The controller decides where focus goes next, sends a
// completed code to its Verifier exactly once, and gates resend behind a
// cooldown. Timers come from a Clock and are released by Close on every exit
// path.
package codeentry
