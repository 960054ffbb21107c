package coordinator

import (
	"github.com/viant/fanout/model/message"
	"github.com/viant/fanout/service/worker"
)

// pool is the identity to handle registry of live workers, kept in spawn order.
type pool struct {
	order   []message.ID
	handles map[message.ID]*worker.Handle
}

func newPool() *pool {
	return &pool{handles: make(map[message.ID]*worker.Handle)}
}

func (p *pool) add(h *worker.Handle) {
	if _, ok := p.handles[h.ID]; ok {
		return
	}
	p.handles[h.ID] = h
	p.order = append(p.order, h.ID)
}

func (p *pool) remove(id message.ID) *worker.Handle {
	h, ok := p.handles[id]
	if !ok {
		return nil
	}
	delete(p.handles, id)
	for i, candidate := range p.order {
		if candidate == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return h
}

func (p *pool) get(id message.ID) *worker.Handle {
	return p.handles[id]
}

func (p *pool) size() int {
	return len(p.order)
}

func (p *pool) list() []*worker.Handle {
	ret := make([]*worker.Handle, 0, len(p.order))
	for _, id := range p.order {
		ret = append(ret, p.handles[id])
	}
	return ret
}

func (p *pool) ids() []message.ID {
	return append([]message.ID(nil), p.order...)
}
