// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Worker identities and mailbox message ids are produced here; callers must
// treat them as opaque strings and never derive meaning from their format.
package idgen
