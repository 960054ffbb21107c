package message

import (
	"fmt"

	"github.com/viant/fanout/service/messaging"
)

// ID identifies a unit of execution. Identities are opaque and never reused.
type ID string

// Kind enumerates message types.
type Kind int

const (
	KindStart Kind = iota + 1
	KindWorkItem
	KindResult
	KindWorkerFailed
	KindRejected
	KindInspect
	KindPoolState
)

var kindNames = map[Kind]string{
	KindStart:        "start",
	KindWorkItem:     "workItem",
	KindResult:       "result",
	KindWorkerFailed: "workerFailed",
	KindRejected:     "rejected",
	KindInspect:      "inspect",
	KindPoolState:    "poolState",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Body is implemented by every message type of this package only.
type Body interface {
	Kind() Kind
}

// Start asks the coordinator to run one round; the envelope's ReplyTo is the requester.
type Start struct{}

// WorkItem is one opaque input value dispatched to a single worker.
type WorkItem struct {
	Value float64
}

// Result is either a worker partial result or a round aggregate.
type Result struct {
	Value float64
}

// WorkerFailed is the termination notification of a watched worker.
type WorkerFailed struct {
	Worker ID
	Err    error
}

// Rejected answers a Start that could not be served.
type Rejected struct {
	Err error
}

// Inspect asks the coordinator for a PoolState reply.
type Inspect struct{}

// PoolState describes the coordinator's pool and round at the time it was asked.
type PoolState struct {
	Workers     []ID
	Active      bool
	Outstanding int
	Round       uint64
}

func (Start) Kind() Kind        { return KindStart }
func (WorkItem) Kind() Kind     { return KindWorkItem }
func (Result) Kind() Kind       { return KindResult }
func (WorkerFailed) Kind() Kind { return KindWorkerFailed }
func (Rejected) Kind() Kind     { return KindRejected }
func (Inspect) Kind() Kind      { return KindInspect }
func (PoolState) Kind() Kind    { return KindPoolState }

// Mailbox is the address of a unit of execution.
type Mailbox = messaging.Queue[Envelope]

// Envelope carries a message body with its sender and reply address.
type Envelope struct {
	From    ID
	ReplyTo Mailbox
	Body    Body
}

// New creates an envelope.
func New(from ID, replyTo Mailbox, body Body) *Envelope {
	return &Envelope{From: from, ReplyTo: replyTo, Body: body}
}
