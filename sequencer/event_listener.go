package sequencer

import "time"

type EventListener interface {
	OnDrip()
	OnExecution(took time.Duration, err error)
	OnBlockClosed(number uint64, diffLength int)
}

type SelectiveListener struct {
	OnDripCb        func()
	OnExecutionCb   func(took time.Duration, err error)
	OnBlockClosedCb func(number uint64, diffLength int)
}

func (l *SelectiveListener) OnDrip() {
	if l.OnDripCb != nil {
		l.OnDripCb()
	}
}

func (l *SelectiveListener) OnExecution(took time.Duration, err error) {
	if l.OnExecutionCb != nil {
		l.OnExecutionCb(took, err)
	}
}

func (l *SelectiveListener) OnBlockClosed(number uint64, diffLength int) {
	if l.OnBlockClosedCb != nil {
		l.OnBlockClosedCb(number, diffLength)
	}
}
