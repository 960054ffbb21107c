// Package message defines the closed set of messages exchanged between a
// round requester, the coordinator and its workers, together with the
// Envelope that carries sender and reply addresses.
package message
