// Package policy decides what happens when a supervised worker fails:
// replace it, or escalate the failure to whoever owns the supervisor once
// faults exceed the tolerated restart intensity.
package policy
