package guard

import (
	"errors"

	"github.com/ManouchehrRasoulli/fsguard/internal/notify"
	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
)

// spawn starts a worker for s. It is called from the registry goroutine
// only, with s idle.
func (g *Guard) spawn(s *pathState) {
	s.quit.Store(false)
	if err := s.n.Rearm(); err != nil {
		code := errno(err)
		s.setError(code, err.Error())
		g.fail(&RuntimeError{Path: s.path, Code: code, Err: err})
		g.dispatch.error(code, s.path)
		return
	}

	id := g.workers.Add(1)
	s.workerID.Store(id)
	s.running.Store(true)
	s.done = make(chan struct{})
	go g.run(s, id, s.done)
}

// run is the watch loop of one root: issue a request, wait, deliver the
// decoded records, and repeat until stopped or failed.
func (g *Guard) run(s *pathState, id uint64, done chan struct{}) {
	defer close(done)

	g.dispatch.status(model.Started, id, s.path)
	g.logger.Printf("guard :: worker %d watching %s (recursive=%t)", id, s.path, s.recursive)

	var failure error
	for {
		records, err := s.n.Next(s.buf)
		g.deliver(s, records)
		if err != nil {
			if !errors.Is(err, notify.ErrStopped) {
				failure = err
			}
			break
		}
		if s.quit.Load() {
			break
		}
	}

	if failure != nil {
		code := errno(failure)
		s.setError(code, failure.Error())
		g.fail(&RuntimeError{Path: s.path, Code: code, Err: failure})
		g.logger.Printf("guard error :: worker %d on %s failed, %v", id, s.path, failure)
		g.dispatch.error(code, s.path)
	}

	s.running.Store(false)
	g.dispatch.status(model.Stopped, id, s.path)
	g.logger.Printf("guard :: worker %d on %s stopped", id, s.path)
}

func (g *Guard) deliver(s *pathState, records []notify.Record) {
	if len(records) == 0 {
		return
	}
	filter := g.filter.Load()
	for _, r := range records {
		if g.paused.Load() {
			return
		}
		abs := s.path + r.Name
		if !filter.match(abs) {
			continue
		}
		g.dispatch.changed(r.Action, abs)
	}
}
